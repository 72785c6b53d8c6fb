package model

// WidgetType 小节的构件类型，闭集
type WidgetType string

const (
	WidgetSummary    WidgetType = "summary"
	WidgetKeyPoints  WidgetType = "key_points"
	WidgetTable      WidgetType = "table"
	WidgetChart      WidgetType = "chart"
	WidgetComparison WidgetType = "comparison"
	WidgetCustom     WidgetType = "custom"
)

var widgetTypes = map[WidgetType]bool{
	WidgetSummary:    true,
	WidgetKeyPoints:  true,
	WidgetTable:      true,
	WidgetChart:      true,
	WidgetComparison: true,
	WidgetCustom:     true,
}

func (w WidgetType) Valid() bool {
	return widgetTypes[w]
}

// ContentType 生成内容的类型，闭集
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	ContentJSON     ContentType = "json"
	ContentText     ContentType = "text"
)

func (c ContentType) Valid() bool {
	return c == ContentMarkdown || c == ContentJSON || c == ContentText
}

// GeneratedBy 版本来源
type GeneratedBy string

const (
	GeneratedByAgent    GeneratedBy = "agent"
	GeneratedByUserEdit GeneratedBy = "user_edit"
	GeneratedByImport   GeneratedBy = "import"
)

func (g GeneratedBy) Valid() bool {
	return g == GeneratedByAgent || g == GeneratedByUserEdit || g == GeneratedByImport
}

const (
	OutputFormatPDF = "pdf"
	OutputFormatPPT = "ppt"

	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"

	TemplateStatusDraft    = "draft"
	TemplateStatusActive   = "active"
	TemplateStatusArchived = "archived"
)

func ValidOutputFormat(s string) bool {
	return s == OutputFormatPDF || s == OutputFormatPPT
}

func ValidOrientation(s string) bool {
	return s == OrientationLandscape || s == OrientationPortrait
}

func ValidTemplateStatus(s string) bool {
	return s == TemplateStatusDraft || s == TemplateStatusActive || s == TemplateStatusArchived
}

// PositionLabel 把小节位置映射为字母标签 (1 -> A, 2 -> B ...)
func PositionLabel(position int) string {
	if position < 1 || position > 26 {
		return "?"
	}
	return string(rune('A' + position - 1))
}
