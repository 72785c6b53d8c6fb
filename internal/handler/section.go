package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// SectionHandler 章节 Handler
type SectionHandler struct {
	sectionService *service.SectionService
}

func NewSectionHandler(sectionService *service.SectionService) *SectionHandler {
	return &SectionHandler{sectionService: sectionService}
}

// List 获取模板下的章节（含小节），按位置排序
func (h *SectionHandler) List(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	sections, err := h.sectionService.List(templateID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sections})
}

// Create 在模板下创建章节
func (h *SectionHandler) Create(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title    string `json:"title" binding:"required"`
		Position *int   `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	section, err := h.sectionService.Create(templateID, req.Title, req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": section})
}

// Get 章节详情
func (h *SectionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	section, err := h.sectionService.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": section})
}

// Rename 重命名章节
func (h *SectionHandler) Rename(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	section, err := h.sectionService.Rename(id, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": section})
}

// Reorder 章节重排
func (h *SectionHandler) Reorder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Position int `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	section, err := h.sectionService.Reorder(id, req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": section})
}

// Delete 删除章节
func (h *SectionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.sectionService.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
