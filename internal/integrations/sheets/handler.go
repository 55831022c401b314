package sheets

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"toolroom/internal/usage"
	"toolroom/pkg/apperrors"
)

type ExportHandler struct {
	service *ExportService
}

func NewExportHandler(service *ExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

func (h *ExportHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/reports/export", h.Export)
}

type exportRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" binding:"required"`
	Report        string `json:"report" binding:"required"`
	EquipmentID   int    `json:"equipment_id"`
	UserID        string `json:"user_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

func (h *ExportHandler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	switch req.Report {
	case "usage":
		filter := usage.UsageFilter{EquipmentID: req.EquipmentID, UserID: req.UserID}
		if req.From != "" {
			t, err := time.Parse(time.RFC3339, req.From)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp"})
				return
			}
			filter.From = &t
		}
		if req.To != "" {
			t, err := time.Parse(time.RFC3339, req.To)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp"})
				return
			}
			filter.To = &t
		}

		result, err := h.service.ExportUsage(req.SpreadsheetID, filter)
		if err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)

	case "stock":
		result, err := h.service.ExportStockHistory(req.SpreadsheetID, req.EquipmentID)
		if err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)

	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unknown report type"})
	}
}
