package toolbridge

import (
	"context"
	"encoding/json"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
)

// 生成类命令：前置检查、作业启停、单小节/单章节生成

type requirementsArgs struct {
	TemplateID uint           `json:"template_id"`
	SectionID  *uint          `json:"section_id"`
	RunInputs  map[string]any `json:"run_inputs"`
}

type startJobArgs struct {
	TemplateID uint           `json:"template_id"`
	RunInputs  map[string]any `json:"run_inputs"`
}

type jobArgs struct {
	TemplateID uint   `json:"template_id"`
	JobID      string `json:"job_id"`
}

type generateOneArgs struct {
	TemplateID   uint           `json:"template_id"`
	SubsectionID uint           `json:"subsection_id"`
	RunInputs    map[string]any `json:"run_inputs"`
}

type generateSectionArgs struct {
	TemplateID uint           `json:"template_id"`
	SectionID  uint           `json:"section_id"`
	RunInputs  map[string]any `json:"run_inputs"`
}

func (b *Bridge) registerGenerationCommands() {
	b.register(&Command{
		Name:        "get_requirements",
		Description: "Check what a generation run still needs: missing run inputs and structural blocking errors. Ready means a job can start now.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"section_id":  map[string]any{"type": "integer", "description": "Limit the check to one section (optional)"},
			"run_inputs":  map[string]any{"type": "object", "description": "Override values merged over the saved preset"},
		}, []string{"template_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[requirementsArgs](args)
			if err != nil {
				return nil, err
			}
			return b.generation.Requirements(a.TemplateID, a.SectionID, a.RunInputs)
		},
	})

	b.register(&Command{
		Name:        "start_generation_job",
		Description: "Start a template-wide generation job. Fails with the full requirements payload if preflight is not ready, and with a conflict if a job is already running.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"run_inputs":  map[string]any{"type": "object", "description": "Run input values; merged over the saved preset and persisted"},
		}, []string{"template_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[startJobArgs](args)
			if err != nil {
				return nil, err
			}
			job, err := b.generation.StartJob(a.TemplateID, a.RunInputs)
			if err != nil {
				if blocked, ok := apperrors.AsBlocked(err); ok {
					return map[string]any{
						"started":         false,
						"ready":           false,
						"required_inputs": blocked.RequiredInputs,
						"blocking_errors": blocked.BlockingErrors,
					}, nil
				}
				return nil, err
			}
			return job, nil
		},
	})

	b.register(&Command{
		Name:        "get_job_status",
		Description: "Get a generation job's status and the per-subsection progress in document order.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"job_id":      map[string]any{"type": "string"},
		}, []string{"template_id", "job_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[jobArgs](args)
			if err != nil {
				return nil, err
			}
			return b.generation.JobStatus(a.JobID)
		},
	})

	b.register(&Command{
		Name:        "cancel_generation_job",
		Description: "Cancel a running generation job. In-flight subsections finish; undispatched ones stay pending.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"job_id":      map[string]any{"type": "string"},
		}, []string{"template_id", "job_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[jobArgs](args)
			if err != nil {
				return nil, err
			}
			return b.generation.CancelJob(a.JobID)
		},
	})

	b.register(&Command{
		Name:        "generate_subsection",
		Description: "Generate one subsection synchronously and save the result as a new version.",
		InputSchema: inputSchema(map[string]any{
			"template_id":   map[string]any{"type": "integer"},
			"subsection_id": map[string]any{"type": "integer"},
			"run_inputs":    map[string]any{"type": "object"},
		}, []string{"template_id", "subsection_id"}),
		handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[generateOneArgs](args)
			if err != nil {
				return nil, err
			}
			return b.generation.GenerateOne(ctx, a.SubsectionID, a.RunInputs)
		},
	})

	b.register(&Command{
		Name:        "generate_section",
		Description: "Generate every eligible subsection of one section synchronously, in document order.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"section_id":  map[string]any{"type": "integer"},
			"run_inputs":  map[string]any{"type": "object"},
		}, []string{"template_id", "section_id"}),
		handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[generateSectionArgs](args)
			if err != nil {
				return nil, err
			}
			return b.generation.GenerateSection(ctx, a.SectionID, a.RunInputs)
		},
	})
}
