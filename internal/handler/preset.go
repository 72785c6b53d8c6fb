package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// PresetHandler 运行输入预设 Handler
type PresetHandler struct {
	presetService *service.PresetService
}

func NewPresetHandler(presetService *service.PresetService) *PresetHandler {
	return &PresetHandler{presetService: presetService}
}

// Get 获取模板的运行输入预设
func (h *PresetHandler) Get(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	preset, err := h.presetService.Get(templateID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": preset})
}

// Save 整体覆盖保存预设
func (h *PresetHandler) Save(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RunInputs map[string]any `json:"run_inputs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preset, err := h.presetService.Save(templateID, req.RunInputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": preset})
}
