package toolbridge

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP 把命令目录整体注册为 MCP 工具
func (b *Bridge) RegisterMCP(srv *mcp.Server) {
	for _, cmd := range b.Commands() {
		tool := &mcp.Tool{
			Name:        cmd.Name,
			Description: cmd.Description,
			InputSchema: cmd.InputSchema,
		}
		name := cmd.Name
		srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := b.Invoke(ctx, name, req.Params.Arguments)
			if err != nil {
				var res mcp.CallToolResult
				res.SetError(errors.New(err.Error()))
				return &res, nil
			}
			data, err := json.Marshal(result)
			if err != nil {
				var res mcp.CallToolResult
				res.SetError(err)
				return &res, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
			}, nil
		})
	}
}
