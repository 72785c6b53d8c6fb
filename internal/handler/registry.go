package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// RegistryHandler 数据源目录 Handler
type RegistryHandler struct {
	registryService *service.RegistryService
}

func NewRegistryHandler(registryService *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{registryService: registryService}
}

// List 数据源目录列表，?active=true 时过滤停用项
func (h *RegistryHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	entries, err := h.registryService.List(activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// Get 单个数据源详情
func (h *RegistryHandler) Get(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.registryService.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}
