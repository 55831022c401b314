package auditlog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuditLogHandler struct {
	repository *AuditLogRepository
}

func NewAuditLogHandler(repository *AuditLogRepository) *AuditLogHandler {
	return &AuditLogHandler{repository: repository}
}

func (h *AuditLogHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/audit/:resource_type/:id", h.GetResourceLog)
}

func (h *AuditLogHandler) GetResourceLog(c *gin.Context) {
	logs, err := h.repository.GetResourceLog(c.Param("id"), c.Param("resource_type"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit log"})
		return
	}

	c.JSON(http.StatusOK, logs)
}
