// Package toolbridge exposes the editing and generation operations as a typed
// command catalog for agent-driven callers.
//
// Every command validates its arguments, executes through the service layer
// and returns either a structured result or a typed error. Invoke never
// panics, and every invocation is appended to the template's conversation
// transcript with role "tool".
package toolbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/service"
)

// Bridge 工具桥：把服务层操作封装成面向 agent 的命令目录
type Bridge struct {
	templates     *service.TemplateService
	sections      *service.SectionService
	subsections   *service.SubsectionService
	ledger        *service.LedgerService
	generation    *service.GenerationService
	snapshots     *service.SnapshotService
	conversations *service.ConversationService

	commands map[string]*Command
}

// Command 目录中的一条命令
type Command struct {
	Name        string
	Description string
	// InputSchema JSON Schema 形式的参数定义
	InputSchema map[string]any
	handler     func(ctx context.Context, args json.RawMessage) (any, error)
}

func NewBridge(
	templates *service.TemplateService,
	sections *service.SectionService,
	subsections *service.SubsectionService,
	ledger *service.LedgerService,
	generation *service.GenerationService,
	snapshots *service.SnapshotService,
	conversations *service.ConversationService,
) *Bridge {
	b := &Bridge{
		templates:     templates,
		sections:      sections,
		subsections:   subsections,
		ledger:        ledger,
		generation:    generation,
		snapshots:     snapshots,
		conversations: conversations,
		commands:      map[string]*Command{},
	}
	b.registerStructureCommands()
	b.registerContentCommands()
	b.registerGenerationCommands()
	b.registerSnapshotCommands()
	return b
}

// Commands 按名称排序返回完整命令目录
func (b *Bridge) Commands() []*Command {
	out := make([]*Command, 0, len(b.commands))
	for _, c := range b.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UnknownCommandError 命令不在目录中
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Name)
}

// Invoke 执行一条命令。参数非法、目标不存在、状态冲突都以类型化错误返回，
// 不会 panic；每次调用（成功或失败）都落会话流水。
func (b *Bridge) Invoke(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	cmd, ok := b.commands[name]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}

	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("工具命令 panic: command=%s panic=%v", name, r)
			err = fmt.Errorf("command %s failed: internal error", name)
			result = nil
		}
		b.logInvocation(name, args, result, err)
	}()

	result, err = cmd.handler(ctx, args)
	return result, err
}

// logInvocation 把调用记录追加到模板会话。参数里找不到 template_id 时跳过。
func (b *Bridge) logInvocation(name string, args json.RawMessage, result any, invokeErr error) {
	var scope struct {
		TemplateID uint `json:"template_id"`
	}
	if len(args) > 0 {
		_ = json.Unmarshal(args, &scope)
	}
	if scope.TemplateID == 0 {
		return
	}

	entry := map[string]any{
		"command": name,
		"args":    json.RawMessage(args),
	}
	if invokeErr != nil {
		entry["error"] = invokeErr.Error()
	} else {
		entry["result"] = result
	}
	content, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if _, err := b.conversations.Append(scope.TemplateID, service.AppendMessageInput{
		Role:    "tool",
		Content: string(content),
		Surface: "tool",
	}); err != nil && !apperrors.IsNotFound(err) {
		klog.V(6).Infof("工具调用流水写入失败: command=%s err=%v", name, err)
	}
}

func (b *Bridge) register(cmd *Command) {
	b.commands[cmd.Name] = cmd
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decode[T any](args json.RawMessage) (*T, error) {
	var v T
	if len(args) > 0 {
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, apperrors.NewValidation("invalid arguments: %v", err)
		}
	}
	return &v, nil
}
