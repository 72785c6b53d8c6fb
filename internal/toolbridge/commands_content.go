package toolbridge

import (
	"context"
	"encoding/json"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/service"
)

// 内容类命令：指令、备注、构件类型、数据源配置、人工编辑版本

type setTextArgs struct {
	TemplateID   uint   `json:"template_id"`
	SubsectionID uint   `json:"subsection_id"`
	Value        string `json:"value"`
}

type configureDataSourceArgs struct {
	TemplateID   uint            `json:"template_id"`
	SubsectionID uint            `json:"subsection_id"`
	Config       json.RawMessage `json:"config"`
}

type saveContentArgs struct {
	TemplateID   uint   `json:"template_id"`
	SubsectionID uint   `json:"subsection_id"`
	Content      string `json:"content"`
	ContentType  string `json:"content_type"`
}

func (b *Bridge) registerContentCommands() {
	b.register(&Command{
		Name:        "set_instructions",
		Description: "Set the generation instructions for a subsection. Non-empty instructions make the subsection eligible for generation.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"value":         map[string]any{"type": "string", "description": "Instruction text; empty clears"},
		}, []string{"template_id", "subsection_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[setTextArgs](args)
			if err != nil {
				return nil, err
			}
			return b.subsections.SetInstructions(a.SubsectionID, a.Value)
		},
	})

	b.register(&Command{
		Name:        "set_notes",
		Description: "Set the free-form notes on a subsection. Notes are passed to the generator as supplementary context.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"value":         map[string]any{"type": "string"},
		}, []string{"template_id", "subsection_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[setTextArgs](args)
			if err != nil {
				return nil, err
			}
			return b.subsections.SetNotes(a.SubsectionID, a.Value)
		},
	})

	b.register(&Command{
		Name:        "set_widget_type",
		Description: "Change the widget type of a subsection (summary, key_points, table, chart, comparison, custom).",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"value":         map[string]any{"type": "string", "enum": []any{"summary", "key_points", "table", "chart", "comparison", "custom"}},
		}, []string{"template_id", "subsection_id", "value"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[setTextArgs](args)
			if err != nil {
				return nil, err
			}
			return b.subsections.SetWidgetType(a.SubsectionID, a.Value)
		},
	})

	b.register(&Command{
		Name:        "configure_data_source",
		Description: "Set the data source configuration for a subsection. Config is {\"inputs\": [{\"source_id\", \"method_id\", \"parameters\"}]} and every referenced source and method must exist in the registry.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"config":        map[string]any{"type": "object", "description": "Data source configuration object"},
		}, []string{"template_id", "subsection_id", "config"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[configureDataSourceArgs](args)
			if err != nil {
				return nil, err
			}
			if len(a.Config) == 0 {
				return nil, apperrors.NewValidation("config is required")
			}
			return b.subsections.ConfigureDataSource(a.SubsectionID, string(a.Config))
		},
	})

	b.register(&Command{
		Name:        "save_content",
		Description: "Save manually edited content as a new version of the subsection. The edit becomes the current content.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"content":       map[string]any{"type": "string"},
			"content_type":  map[string]any{"type": "string", "enum": []any{"markdown", "json", "text"}},
		}, []string{"template_id", "subsection_id", "content"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[saveContentArgs](args)
			if err != nil {
				return nil, err
			}
			input := service.SaveVersionInput{
				Content:     &a.Content,
				GeneratedBy: string(model.GeneratedByUserEdit),
			}
			if a.ContentType != "" {
				input.ContentType = &a.ContentType
			}
			return b.ledger.Save(a.SubsectionID, input)
		},
	})
}
