package container

import (
	"database/sql"

	"go.uber.org/zap"
	sheetsapi "google.golang.org/api/sheets/v4"

	auditLogRepo "toolroom/internal/auditlog"
	"toolroom/internal/equipment"
	"toolroom/internal/events"
	"toolroom/internal/integrations/sheets"
	"toolroom/internal/notify"
	"toolroom/internal/repair"
	"toolroom/internal/repository"
	"toolroom/internal/stock"
	"toolroom/internal/usage"
	"toolroom/pkg/auditlog"
)

type Container struct {
	Repository       *repository.Repository
	AuditLog         *auditlog.Auditlog
	Bus              *events.Bus
	AuditLogHandler  *auditLogRepo.AuditLogHandler
	EquipmentHandler *equipment.EquipmentHandler
	UsageHandler     *usage.UsageHandler
	StockHandler     *stock.StockHandler
	RepairHandler    *repair.RepairHandler
	ExportHandler    *sheets.ExportHandler
}

// NewAppContainer wires every repository, service and handler. The sheets
// client is optional; without it the export routes are not registered.
func NewAppContainer(db *sql.DB, sheetsService *sheetsapi.Service, log *zap.Logger) *Container {
	repo := repository.NewRepository(db)
	bus := events.NewBus(log)
	notifier := notify.NewWebhookNotifier(log)

	auditRepo := auditLogRepo.NewRepository(repo)
	auditLog := auditlog.NewAuditLog(auditRepo, log)

	equipmentRepo := equipment.NewRepository(repo)
	usageRepo := usage.NewRepository(repo)
	stockRepo := stock.NewRepository(repo)
	repairRepo := repair.NewRepository(repo)

	equipmentService := equipment.NewEquipmentService(repo, equipmentRepo, usageRepo, auditLog, bus, log)
	usageService := usage.NewUsageService(repo, usageRepo, equipmentRepo, auditLog, bus, notifier, log)
	stockService := stock.NewStockService(repo, equipmentRepo, stockRepo, auditLog, bus, log)
	repairService := repair.NewRepairService(repo, repairRepo, equipmentRepo, auditLog, bus, notifier, log)

	container := &Container{
		Repository:       repo,
		AuditLog:         auditLog,
		Bus:              bus,
		AuditLogHandler:  auditLogRepo.NewAuditLogHandler(auditRepo),
		EquipmentHandler: equipment.NewEquipmentHandler(equipmentService),
		UsageHandler:     usage.NewUsageHandler(usageService),
		StockHandler:     stock.NewStockHandler(stockService),
		RepairHandler:    repair.NewRepairHandler(repairService),
	}

	if sheetsService != nil {
		exportService := sheets.NewExportService(sheetsService, usageService, stockService, log)
		container.ExportHandler = sheets.NewExportHandler(exportService)
	}

	return container
}
