package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// ConversationHandler 会话 Handler
type ConversationHandler struct {
	conversationService *service.ConversationService
}

func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// Append 追加一条会话消息
func (h *ConversationHandler) Append(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.AppendMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.conversationService.Append(templateID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": msg})
}

// History 会话历史，序号升序
func (h *ConversationHandler) History(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	msgs, err := h.conversationService.History(templateID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}
