package toolbridge

import (
	"context"
	"encoding/json"
)

// 快照类命令：拍快照、恢复、派生

type snapshotCreateArgs struct {
	TemplateID uint   `json:"template_id"`
	CreatedBy  string `json:"created_by"`
}

type snapshotTargetArgs struct {
	TemplateID uint `json:"template_id"`
	SnapshotID uint `json:"snapshot_id"`
}

type forkArgs struct {
	TemplateID uint   `json:"template_id"`
	Name       string `json:"name"`
}

func (b *Bridge) registerSnapshotCommands() {
	b.register(&Command{
		Name:        "create_snapshot",
		Description: "Capture the template's current tree as an immutable snapshot.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"created_by":  map[string]any{"type": "string", "description": "Attribution label (optional)"},
		}, []string{"template_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[snapshotCreateArgs](args)
			if err != nil {
				return nil, err
			}
			return b.snapshots.Create(a.TemplateID, a.CreatedBy)
		},
	})

	b.register(&Command{
		Name:        "restore_snapshot",
		Description: "Replace the template's current tree with a snapshot's content. Unsnapshotted work is lost; take a snapshot first to keep it.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer"},
			"snapshot_id": map[string]any{"type": "integer"},
		}, []string{"template_id", "snapshot_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[snapshotTargetArgs](args)
			if err != nil {
				return nil, err
			}
			return b.snapshots.Restore(a.TemplateID, a.SnapshotID)
		},
	})

	b.register(&Command{
		Name:        "fork_template",
		Description: "Create a new draft template as a full copy of the template's current tree. The source template is untouched.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "integer", "description": "Source template"},
			"name":        map[string]any{"type": "string", "description": "Name for the new template (optional)"},
		}, []string{"template_id"}),
		handler: func(_ context.Context, args json.RawMessage) (any, error) {
			a, err := decode[forkArgs](args)
			if err != nil {
				return nil, err
			}
			return b.snapshots.Fork(a.TemplateID, a.Name)
		},
	})
}
