package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/toolbridge"
)

// ToolHandler 工具桥的 HTTP 入口
type ToolHandler struct {
	bridge *toolbridge.Bridge
}

func NewToolHandler(bridge *toolbridge.Bridge) *ToolHandler {
	return &ToolHandler{bridge: bridge}
}

// List 命令目录
func (h *ToolHandler) List(c *gin.Context) {
	type commandView struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"input_schema"`
	}
	commands := h.bridge.Commands()
	out := make([]commandView, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, commandView{
			Name:        cmd.Name,
			Description: cmd.Description,
			InputSchema: cmd.InputSchema,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Invoke 执行一条命令
func (h *ToolHandler) Invoke(c *gin.Context) {
	var req struct {
		Command string          `json:"command" binding:"required"`
		Args    json.RawMessage `json:"args"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.bridge.Invoke(c.Request.Context(), req.Command, req.Args)
	if err != nil {
		var unknown *toolbridge.UnknownCommandError
		if errors.As(err, &unknown) {
			c.JSON(http.StatusNotFound, gin.H{"error": unknown.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
