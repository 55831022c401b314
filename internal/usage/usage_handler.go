package usage

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type UsageHandler struct {
	service *UsageService
}

func NewUsageHandler(service *UsageService) *UsageHandler {
	return &UsageHandler{service: service}
}

func (h *UsageHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/usage", h.BorrowOrWithdraw)
	router.GET("/usage", h.ListUsage)
	router.POST("/usage/:id/return-request", h.RequestReturn)
	router.POST("/usage/:id/confirm-return", h.ConfirmReturn)
	router.POST("/usage/returns/confirm", h.BulkConfirmReturns)
}

func (h *UsageHandler) BorrowOrWithdraw(c *gin.Context) {
	var req models.UsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	record, err := h.service.BorrowOrWithdraw(req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *UsageHandler) RequestReturn(c *gin.Context) {
	record, err := h.service.RequestReturn(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *UsageHandler) ConfirmReturn(c *gin.Context) {
	id := c.Param("id")

	record, err := h.service.ConfirmReturn(id)
	if err != nil {
		// double-submission from a retried UI action is a no-op, not a failure
		if apperrors.IsAlreadyProcessed(err) {
			c.JSON(http.StatusOK, models.ReturnOutcome{
				UsageID: id,
				Outcome: models.ReturnOutcomeAlreadyReturned,
				Message: err.Error(),
			})
			return
		}
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

type bulkConfirmRequest struct {
	UsageIDs []string `json:"usage_ids" binding:"required"`
}

func (h *UsageHandler) BulkConfirmReturns(c *gin.Context) {
	var req bulkConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	outcomes := h.service.BulkConfirmReturns(req.UsageIDs)
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

func (h *UsageHandler) ListUsage(c *gin.Context) {
	var filter UsageFilter

	if equipmentID := c.Query("equipment_id"); equipmentID != "" {
		id, err := strconv.Atoi(equipmentID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment_id"})
			return
		}
		filter.EquipmentID = id
	}
	filter.UserID = c.Query("user_id")

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp"})
			return
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp"})
			return
		}
		filter.To = &t
	}

	records, err := h.service.List(filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list usage records"})
		return
	}

	c.JSON(http.StatusOK, records)
}
