package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// GenerateHandler 生成编排 Handler
type GenerateHandler struct {
	generationService *service.GenerationService
}

func NewGenerateHandler(generationService *service.GenerationService) *GenerateHandler {
	return &GenerateHandler{generationService: generationService}
}

// Requirements 生成前置检查
func (h *GenerateHandler) Requirements(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		SectionID *uint          `json:"section_id"`
		RunInputs map[string]any `json:"run_inputs"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	view, err := h.generationService.Requirements(templateID, req.SectionID, req.RunInputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// StartJob 启动模板级生成作业
func (h *GenerateHandler) StartJob(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RunInputs map[string]any `json:"run_inputs"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	job, err := h.generationService.StartJob(templateID, req.RunInputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

// JobStatus 作业状态查询
func (h *GenerateHandler) JobStatus(c *gin.Context) {
	jobID := c.Param("jobId")
	job, err := h.generationService.JobStatus(jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

// CancelJob 取消作业
func (h *GenerateHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("jobId")
	job, err := h.generationService.CancelJob(jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

// GenerateOne 同步生成单个小节
func (h *GenerateHandler) GenerateOne(c *gin.Context) {
	subsectionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RunInputs map[string]any `json:"run_inputs"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	result, err := h.generationService.GenerateOne(c.Request.Context(), subsectionID, req.RunInputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GenerateSection 同步生成单个章节
func (h *GenerateHandler) GenerateSection(c *gin.Context) {
	sectionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RunInputs map[string]any `json:"run_inputs"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	result, err := h.generationService.GenerateSection(c.Request.Context(), sectionID, req.RunInputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
