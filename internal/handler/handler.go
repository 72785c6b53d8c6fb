package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
)

// parseID 解析路径里的数字 ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// respondError 业务错误统一映射为 HTTP 状态码
func respondError(c *gin.Context, err error) {
	var validation *apperrors.ValidationError
	var notFound *apperrors.NotFoundError
	var conflict *apperrors.ConflictError
	var genErr *apperrors.GenerationError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	case errors.As(err, &genErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": genErr.Error()})
	default:
		if blocked, ok := apperrors.AsBlocked(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":           "generation blocked",
				"ready":           false,
				"required_inputs": blocked.RequiredInputs,
				"blocking_errors": blocked.BlockingErrors,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
