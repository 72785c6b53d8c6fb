package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/service"
)

// VersionHandler 版本账本 Handler
type VersionHandler struct {
	ledger *service.LedgerService
}

func NewVersionHandler(ledger *service.LedgerService) *VersionHandler {
	return &VersionHandler{ledger: ledger}
}

// History 小节的版本历史，新的在前
func (h *VersionHandler) History(c *gin.Context) {
	subsectionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	versions, err := h.ledger.History(subsectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": versions})
}

// SaveManual 人工编辑内容落一条新版本
func (h *VersionHandler) SaveManual(c *gin.Context) {
	subsectionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content     string  `json:"content" binding:"required"`
		ContentType *string `json:"content_type"`
		Title       *string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.ledger.Save(subsectionID, service.SaveVersionInput{
		Content:     &req.Content,
		ContentType: req.ContentType,
		Title:       req.Title,
		GeneratedBy: string(model.GeneratedByUserEdit),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

// Get 按版本 ID 取单条历史记录
func (h *VersionHandler) Get(c *gin.Context) {
	versionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	version, err := h.ledger.Version(versionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": version})
}

// MarkFinal 标记某版本为最终版（同小节其余版本的标记被清除）
func (h *VersionHandler) MarkFinal(c *gin.Context) {
	versionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	version, err := h.ledger.MarkFinal(versionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": version})
}
