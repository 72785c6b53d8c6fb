package model

import (
	"encoding/json"
	"fmt"
)

// DataInput 小节数据输入：引用目录里的某个数据源取数方法
type DataInput struct {
	SourceID   string         `json:"source_id"`
	MethodID   string         `json:"method_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// DataSourceConfig 小节的数据源配置（Subsection.DataSourceConfig 的 JSON 结构）
type DataSourceConfig struct {
	Inputs []DataInput `json:"inputs"`
}

// ParseDataSourceConfig 解析小节上保存的 JSON 配置。空串视为无配置。
func ParseDataSourceConfig(raw string) (*DataSourceConfig, error) {
	if raw == "" {
		return &DataSourceConfig{}, nil
	}
	var cfg DataSourceConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("invalid data_source_config: %w", err)
	}
	return &cfg, nil
}

// ParameterDef 取数方法的参数定义
type ParameterDef struct {
	Key      string   `json:"key"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type"` // string, integer, number, boolean, enum
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// RetrievalMethod 数据源的一种取数方法
type RetrievalMethod struct {
	MethodID    string         `json:"method_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  []ParameterDef `json:"parameters"`
}

// ParseRetrievalMethods 解析 DataSource.Methods 的 JSON
func ParseRetrievalMethods(raw string) ([]RetrievalMethod, error) {
	if raw == "" {
		return nil, nil
	}
	var methods []RetrievalMethod
	if err := json.Unmarshal([]byte(raw), &methods); err != nil {
		return nil, fmt.Errorf("invalid retrieval methods: %w", err)
	}
	return methods, nil
}

// CatalogEntry 数据源目录的读模型（对外契约）
type CatalogEntry struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	RetrievalMethods []RetrievalMethod `json:"retrieval_methods"`
	IsActive         bool              `json:"is_active"`
}

// SnapshotPayload 模板快照的 JSON 结构
type SnapshotPayload struct {
	Template SnapshotTemplate  `json:"template"`
	Sections []SnapshotSection `json:"sections"`
}

type SnapshotTemplate struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	OutputFormat      string `json:"output_format"`
	Orientation       string `json:"orientation"`
	Status            string `json:"status"`
	FormattingProfile string `json:"formatting_profile"`
}

type SnapshotSection struct {
	Position    int                  `json:"position"`
	Title       string               `json:"title"`
	Subsections []SnapshotSubsection `json:"subsections"`
}

type SnapshotSubsection struct {
	Title            string `json:"title"`
	Position         int    `json:"position"`
	WidgetType       string `json:"widget_type"`
	DataSourceConfig string `json:"data_source_config"`
	Notes            string `json:"notes"`
	Instructions     string `json:"instructions"`
	Content          string `json:"content"`
	ContentType      string `json:"content_type"`
	VersionNumber    int    `json:"version_number"`
}
