package model

import (
	"time"
)

// Template 报告模板，是整棵文档树和会话的根
type Template struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"size:255;not null"`
	Description       string    `json:"description" gorm:"size:1000"`
	OutputFormat      string    `json:"output_format" gorm:"size:20;default:pdf"`      // pdf, ppt
	Orientation       string    `json:"orientation" gorm:"size:20;default:landscape"`  // landscape, portrait
	Status            string    `json:"status" gorm:"size:50;default:draft"`           // draft, active, archived
	FormattingProfile string    `json:"formatting_profile" gorm:"type:text;default:{}"` // JSON
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
}

// Section 模板内的有序内容容器
// Position 在同一模板内连续且唯一（1..N），插入/删除/重排时原子重排号
type Section struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TemplateID uint      `json:"template_id" gorm:"index;not null"`
	Title      string    `json:"title" gorm:"size:255"`
	Position   int       `json:"position" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Subsections []Subsection `json:"subsections,omitempty" gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`
}

// Subsection 小节（内容块），最小的独立生成/版本化单元
// 缓存当前视图：Content/ContentType/VersionNumber 始终与最新版本一致
type Subsection struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	SectionID        uint      `json:"section_id" gorm:"index;not null"`
	Title            string    `json:"title" gorm:"size:255"`
	Position         int       `json:"position" gorm:"not null"`
	WidgetType       string    `json:"widget_type" gorm:"size:50;default:summary"`
	DataSourceConfig string    `json:"data_source_config" gorm:"type:text"` // JSON
	Notes            string    `json:"notes" gorm:"type:text"`
	Instructions     string    `json:"instructions" gorm:"type:text"`
	Content          string    `json:"content" gorm:"type:text"`
	ContentType      string    `json:"content_type" gorm:"size:50;default:markdown"`
	VersionNumber    int       `json:"version_number" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Versions []SubsectionVersion `json:"versions,omitempty" gorm:"foreignKey:SubsectionID;constraint:OnDelete:CASCADE"`
}

// SubsectionVersion 小节版本，不可变
// 版本号从 1 起、每次成功写入严格 +1，不复用不跳号；
// (subsection_id, version_number) 唯一索引兜底并发冲突
type SubsectionVersion struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	SubsectionID      uint      `json:"subsection_id" gorm:"not null;uniqueIndex:idx_subsection_version"`
	VersionNumber     int       `json:"version_number" gorm:"not null;uniqueIndex:idx_subsection_version"`
	Instructions      string    `json:"instructions" gorm:"type:text"`
	Notes             string    `json:"notes" gorm:"type:text"`
	Content           string    `json:"content" gorm:"type:text"`
	ContentType       string    `json:"content_type" gorm:"size:50;default:markdown"`
	GeneratedBy       string    `json:"generated_by" gorm:"size:50;default:agent"` // agent, user_edit, import
	IsFinal           bool      `json:"is_final" gorm:"default:false"`
	GenerationContext string    `json:"generation_context" gorm:"type:text"` // JSON
	CreatedAt         time.Time `json:"created_at"`
}

// GenerationJob 一次模板级批量生成运行
// 目标小节列表在启动时固化到 Items，不在运行中重查
type GenerationJob struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	JobID       string     `json:"job_id" gorm:"size:64;uniqueIndex"` // UUID
	TemplateID  uint       `json:"template_id" gorm:"index;not null"`
	Status      string     `json:"status" gorm:"size:50;default:pending"` // pending, in_progress, completed, failed
	CurrentIndex int       `json:"current_index" gorm:"default:0"`
	ErrorMsg    string     `json:"error_msg" gorm:"size:2000"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items []GenerationJobItem `json:"items,omitempty" gorm:"foreignKey:JobRowID;constraint:OnDelete:CASCADE"`
}

// GenerationJobItem 作业内单个小节的进度记录
type GenerationJobItem struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	JobRowID     uint       `json:"-" gorm:"index;not null"`
	SubsectionID uint       `json:"subsection_id" gorm:"not null"`
	Title        string     `json:"title" gorm:"size:255"`
	Position     int        `json:"position"`
	SectionTitle string     `json:"section_title" gorm:"size:255"`
	WidgetType   string     `json:"widget_type" gorm:"size:50"`
	SortOrder    int        `json:"sort_order" gorm:"default:0"`
	Status       string     `json:"status" gorm:"size:50;default:pending"` // pending, in_progress, completed, failed
	ErrorMsg     string     `json:"error" gorm:"size:2000"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// TemplateSnapshot 模板级快照：模板元数据 + 整棵 section/subsection 树的深拷贝
// 只含缓存内容，不含各小节的版本历史
type TemplateSnapshot struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	TemplateID    uint      `json:"template_id" gorm:"not null;uniqueIndex:idx_template_snapshot_version"`
	VersionNumber int       `json:"version_number" gorm:"not null;uniqueIndex:idx_template_snapshot_version"`
	Name          string    `json:"name" gorm:"size:255"`
	Snapshot      string    `json:"-" gorm:"type:text;not null"` // JSON SnapshotPayload
	CreatedBy     string    `json:"created_by" gorm:"size:255"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunInputsPreset 每模板至多一条的生成输入预设，随每次启动合并覆盖
type RunInputsPreset struct {
	TemplateID uint      `json:"template_id" gorm:"primaryKey"`
	RunInputs  string    `json:"run_inputs" gorm:"type:text;default:{}"` // JSON map
	UpdatedAt  time.Time `json:"updated_at"`
}

// Conversation 每模板一个会话
type Conversation struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TemplateID uint      `json:"template_id" gorm:"uniqueIndex;not null"`
	CreatedAt  time.Time `json:"created_at"`

	Messages []ConversationMessage `json:"messages,omitempty" gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// ConversationMessage 会话消息
// SequenceNumber 在会话内单调递增且无空洞
type ConversationMessage struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"not null;uniqueIndex:idx_conversation_sequence"`
	SequenceNumber int       `json:"sequence_number" gorm:"not null;uniqueIndex:idx_conversation_sequence"`
	Role           string    `json:"role" gorm:"size:32;not null"` // user, assistant, system, tool
	Content        string    `json:"content" gorm:"type:text;not null"`
	Surface        string    `json:"surface" gorm:"size:32;default:main"`
	SectionID      *uint     `json:"section_id"`
	SubsectionID   *uint     `json:"subsection_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// DataSource 数据源目录条目，只读消费
// Methods 为 RetrievalMethod 列表的 JSON
type DataSource struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"size:1000"`
	Category    string    `json:"category" gorm:"size:100"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	Methods     string    `json:"-" gorm:"type:text;not null"` // JSON []RetrievalMethod
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload 上传文件元数据，正文提取由外部完成
type Upload struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TemplateID  uint      `json:"template_id" gorm:"index;not null"`
	Filename    string    `json:"filename" gorm:"size:255;not null"`
	StoredPath  string    `json:"stored_path" gorm:"size:500;not null"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
