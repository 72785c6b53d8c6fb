package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// SnapshotHandler 快照 Handler
type SnapshotHandler struct {
	snapshotService *service.SnapshotService
}

func NewSnapshotHandler(snapshotService *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService}
}

// Create 给模板当前状态拍快照
func (h *SnapshotHandler) Create(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		CreatedBy string `json:"created_by"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	snap, err := h.snapshotService.Create(templateID, req.CreatedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": snap})
}

// List 模板的快照列表（不含载荷）
func (h *SnapshotHandler) List(c *gin.Context) {
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
	snaps, err := h.snapshotService.List(templateID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snaps})
}

// Get 快照详情（含载荷）
func (h *SnapshotHandler) Get(c *gin.Context) {
	snapshotID, ok := parseID(c, "snapshotId")
	if !ok {
		return
	}
	detail, err := h.snapshotService.Get(snapshotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// Restore 用快照整体替换模板当前章节树
func (h *SnapshotHandler) Restore(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	snapshotID, ok := parseID(c, "snapshotId")
	if !ok {
		return
	}
	result, err := h.snapshotService.Restore(templateID, snapshotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Fork 按模板当前实时树派生新模板
func (h *SnapshotHandler) Fork(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	result, err := h.snapshotService.Fork(templateID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}
