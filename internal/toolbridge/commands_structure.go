package toolbridge

import (
	"context"
	"encoding/json"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/service"
)

// 结构类命令：章节与小节的创建、重命名、重排、删除

type createSectionArgs struct {
	TemplateID uint   `json:"template_id"`
	Title      string `json:"title"`
	Position   *int   `json:"position"`
}

type sectionTargetArgs struct {
	TemplateID uint   `json:"template_id"`
	SectionID  uint   `json:"section_id"`
	Title      string `json:"title"`
	Position   int    `json:"position"`
}

type createSubsectionArgs struct {
	TemplateID uint   `json:"template_id"`
	SectionID  uint   `json:"section_id"`
	Title      string `json:"title"`
	WidgetType string `json:"widget_type"`
	Position   *int   `json:"position"`
}

type subsectionTargetArgs struct {
	TemplateID   uint   `json:"template_id"`
	SubsectionID uint   `json:"subsection_id"`
	Title        string `json:"title"`
	Position     int    `json:"position"`
}

func (b *Bridge) registerStructureCommands() {
	b.register(&Command{
		Name:        "create_section",
		Description: "Create a new section in the template. Position is optional; omitted means append at the end.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer", "description": "Template to add the section to"},
			"title":       map[string]any{"type": "string", "description": "Section title"},
			"position":    map[string]any{"type": "integer", "description": "1-based insert position (optional)"},
		}, []string{"template_id", "title"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[createSectionArgs](args)
			if err != nil {
				return nil, err
			}
			return b.sections.Create(a.TemplateID, a.Title, a.Position)
		},
	})

	b.register(&Command{
		Name:        "rename_section",
		Description: "Rename an existing section.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"section_id":  map[string]any{"type": "integer"},
			"title":       map[string]any{"type": "string", "description": "New title"},
		}, []string{"template_id", "section_id", "title"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[sectionTargetArgs](args)
			if err != nil {
				return nil, err
			}
			if a.Title == "" {
				return nil, apperrors.NewValidation("title is required")
			}
			return b.sections.Rename(a.SectionID, a.Title)
		},
	})

	b.register(&Command{
		Name:        "reorder_section",
		Description: "Move a section to a new position. Remaining sections renumber to stay contiguous.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"section_id":  map[string]any{"type": "integer"},
			"position":    map[string]any{"type": "integer", "description": "New 1-based position"},
		}, []string{"template_id", "section_id", "position"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[sectionTargetArgs](args)
			if err != nil {
				return nil, err
			}
			return b.sections.Reorder(a.SectionID, a.Position)
		},
	})

	b.register(&Command{
		Name:        "delete_section",
		Description: "Delete a section with all its subsections and their version history.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"section_id":  map[string]any{"type": "integer"},
		}, []string{"template_id", "section_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[sectionTargetArgs](args)
			if err != nil {
				return nil, err
			}
			if err := b.sections.Delete(a.SectionID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "section_id": a.SectionID}, nil
		},
	})

	b.register(&Command{
		Name:        "create_subsection",
		Description: "Create a new subsection (content block) inside a section.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"section_id":  map[string]any{"type": "integer"},
			"title":       map[string]any{"type": "string"},
			"widget_type": map[string]any{"type": "string", "enum": []any{"summary", "key_points", "table", "chart", "comparison", "custom"}},
			"position":    map[string]any{"type": "integer", "description": "1-based insert position (optional)"},
		}, []string{"template_id", "section_id", "title"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[createSubsectionArgs](args)
			if err != nil {
				return nil, err
			}
			return b.subsections.Create(service.CreateSubsectionInput{
				SectionID:  a.SectionID,
				Title:      a.Title,
				WidgetType: a.WidgetType,
				Position:   a.Position,
			})
		},
	})

	b.register(&Command{
		Name:        "rename_subsection",
		Description: "Rename an existing subsection.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"title":         map[string]any{"type": "string"},
		}, []string{"template_id", "subsection_id", "title"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[subsectionTargetArgs](args)
			if err != nil {
				return nil, err
			}
			if a.Title == "" {
				return nil, apperrors.NewValidation("title is required")
			}
			return b.subsections.Rename(a.SubsectionID, a.Title)
		},
	})

	b.register(&Command{
		Name:        "reorder_subsection",
		Description: "Move a subsection to a new position within its section.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"position":      map[string]any{"type": "integer", "description": "New 1-based position"},
		}, []string{"template_id", "subsection_id", "position"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[subsectionTargetArgs](args)
			if err != nil {
				return nil, err
			}
			return b.subsections.Reorder(a.SubsectionID, a.Position)
		},
	})

	b.register(&Command{
		Name:        "delete_subsection",
		Description: "Delete a subsection and its version history.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
		}, []string{"template_id", "subsection_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[subsectionTargetArgs](args)
			if err != nil {
				return nil, err
			}
			if err := b.subsections.Delete(a.SubsectionID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "subsection_id": a.SubsectionID}, nil
		},
	})
}
