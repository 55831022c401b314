package stock

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type StockHandler struct {
	service *StockService
}

func NewStockHandler(service *StockService) *StockHandler {
	return &StockHandler{service: service}
}

func (h *StockHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/equipment/:id/restock", h.Restock)
	router.GET("/equipment/:id/history", h.History)
	router.POST("/stocks/bulk", h.BulkAdjust)
}

func (h *StockHandler) Restock(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment id"})
		return
	}

	var req models.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	entry, err := h.service.Restock(id, req.Delta, req.Note)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *StockHandler) History(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment id"})
		return
	}

	entries, err := h.service.History(id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stock history"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

type bulkAdjustRequest struct {
	Rows []models.AdjustmentRow `json:"rows" binding:"required"`
}

func (h *StockHandler) BulkAdjust(c *gin.Context) {
	mode := models.AdjustmentMode(c.DefaultQuery("mode", string(models.ModeRestock)))
	if !mode.IsValid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid mode, expected import or restock"})
		return
	}

	var req bulkAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	results := h.service.BulkAdjust(req.Rows, mode)
	c.JSON(http.StatusOK, gin.H{"results": results})
}
