package repair

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type RepairHandler struct {
	service *RepairService
}

func NewRepairHandler(service *RepairService) *RepairHandler {
	return &RepairHandler{service: service}
}

func (h *RepairHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/repairs/reports", h.ReportProblem)
	router.GET("/repairs/reports", h.ListReports)
	router.POST("/repairs/reports/:id/write-off", h.WriteOff)
	router.POST("/repairs/orders", h.StartRepair)
	router.GET("/repairs/orders", h.ListOrders)
	router.POST("/repairs/orders/:id/complete", h.CompleteRepair)
	router.POST("/repairs/orders/:id/cancel", h.CancelRepair)
	router.DELETE("/repairs/orders/:id", h.DeleteOrder)
}

func (h *RepairHandler) ReportProblem(c *gin.Context) {
	var req models.ReportProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	report, err := h.service.ReportProblem(req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *RepairHandler) StartRepair(c *gin.Context) {
	var req models.StartRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	order, err := h.service.StartRepair(req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *RepairHandler) CompleteRepair(c *gin.Context) {
	order, err := h.service.CompleteRepair(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *RepairHandler) CancelRepair(c *gin.Context) {
	order, err := h.service.CancelRepair(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *RepairHandler) DeleteOrder(c *gin.Context) {
	if err := h.service.DeleteOrder(c.Param("id")); err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RepairHandler) WriteOff(c *gin.Context) {
	report, err := h.service.WriteOff(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *RepairHandler) ListReports(c *gin.Context) {
	h.list(c, func(equipmentID int) (interface{}, error) {
		return h.service.ListReports(equipmentID)
	})
}

func (h *RepairHandler) ListOrders(c *gin.Context) {
	h.list(c, func(equipmentID int) (interface{}, error) {
		return h.service.ListOrders(equipmentID)
	})
}

func (h *RepairHandler) list(c *gin.Context, fetch func(int) (interface{}, error)) {
	var equipmentID int
	if raw := c.Query("equipment_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment_id"})
			return
		}
		equipmentID = id
	}

	result, err := fetch(equipmentID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list repair records"})
		return
	}

	c.JSON(http.StatusOK, result)
}
