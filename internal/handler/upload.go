package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/service"
)

// UploadHandler 参考资料上传 Handler
type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 接收 multipart 文件
func (h *UploadHandler) Upload(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	upload, err := h.uploadService.Store(templateID, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": upload})
}

// List 模板下的上传列表
func (h *UploadHandler) List(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	uploads, err := h.uploadService.List(templateID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": uploads})
}

// Download 下载原文件
func (h *UploadHandler) Download(c *gin.Context) {
	id, ok := parseID(c, "uploadId")
	if !ok {
		return
	}
	upload, err := h.uploadService.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(upload.StoredPath, upload.Filename)
}

// Delete 删除上传
func (h *UploadHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "uploadId")
	if !ok {
		return
	}
	if err := h.uploadService.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
