package equipment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type EquipmentHandler struct {
	service *EquipmentService
}

func NewEquipmentHandler(service *EquipmentService) *EquipmentHandler {
	return &EquipmentHandler{service: service}
}

func (h *EquipmentHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/equipment", h.CreateEquipment)
	router.GET("/equipment", h.ListEquipment)
	router.GET("/equipment/:id", h.GetEquipment)
	router.POST("/equipment/:id/retire", h.RetireEquipment)
	router.POST("/equipment/:id/lost", h.MarkEquipmentLost)
}

func (h *EquipmentHandler) CreateEquipment(c *gin.Context) {
	var req models.CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	item, err := h.service.Create(req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *EquipmentHandler) ListEquipment(c *gin.Context) {
	filter := EquipmentFilter{
		Category: c.Query("category"),
		Kind:     c.Query("kind"),
	}

	items, err := h.service.List(filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list equipment"})
		return
	}

	c.JSON(http.StatusOK, items)
}

func (h *EquipmentHandler) GetEquipment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment id"})
		return
	}

	item, err := h.service.Get(id)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *EquipmentHandler) RetireEquipment(c *gin.Context) {
	h.lifecycleExit(c, h.service.Retire)
}

func (h *EquipmentHandler) MarkEquipmentLost(c *gin.Context) {
	h.lifecycleExit(c, h.service.MarkLost)
}

func (h *EquipmentHandler) lifecycleExit(c *gin.Context, exit func(int) (*models.EquipmentItem, error)) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment id"})
		return
	}

	item, err := exit(id)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}
