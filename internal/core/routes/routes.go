package routes

import (
	"github.com/gin-gonic/gin"

	"toolroom/internal/core/container"
	"toolroom/internal/middleware"
)

func RegisterPublicRoutes(router *gin.Engine, c *container.Container) {
	c.EquipmentHandler.RegisterRoutes(router)
	c.UsageHandler.RegisterRoutes(router)
	c.StockHandler.RegisterRoutes(router)
	c.RepairHandler.RegisterRoutes(router)
	c.AuditLogHandler.RegisterRoutes(router)

	if c.ExportHandler != nil {
		c.ExportHandler.RegisterRoutes(router)
	}
}

func RegisterUtilityRoutes(router *gin.Engine) {
	router.GET("/health", middleware.HealthCheckHandler())
}
