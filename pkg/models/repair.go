package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RepairReportStatus string

const (
	ReportStatusPending    RepairReportStatus = "pending"
	ReportStatusInProgress RepairReportStatus = "in_progress"
	ReportStatusCompleted  RepairReportStatus = "completed"
	ReportStatusWriteOff   RepairReportStatus = "write_off"
)

// RepairReport is a user-submitted problem notification. Its quantity left
// the equipment's available pool the moment the report was created,
// independent of whether a repair order exists yet.
type RepairReport struct {
	ID          string             `json:"id" db:"id"`
	EquipmentID int                `json:"equipment_id" db:"equipment_id"`
	Quantity    int                `json:"quantity" db:"quantity"`
	Note        string             `json:"note" db:"note"`
	ReporterID  string             `json:"reporter_id" db:"reporter_id"`
	Status      RepairReportStatus `json:"status" db:"status"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
}

func (r *RepairReport) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "repair_report",
	}
}

type RepairOrderStatus string

const (
	OrderStatusInProgress RepairOrderStatus = "in_progress"
	OrderStatusCompleted  RepairOrderStatus = "completed"
	OrderStatusCancelled  RepairOrderStatus = "cancelled"
)

// RepairOrder is the admin-managed record of active repair work. It drives
// the equipment's lifecycle state directly.
type RepairOrder struct {
	ID          string            `json:"id" db:"id"`
	EquipmentID int               `json:"equipment_id" db:"equipment_id"`
	Status      RepairOrderStatus `json:"status" db:"status"`
	Technician  *string           `json:"technician,omitempty" db:"technician"`
	Cost        *decimal.Decimal  `json:"cost,omitempty" db:"cost"`
	Note        string            `json:"note" db:"note"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

func (r *RepairOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "repair_order",
	}
}

type ReportProblemRequest struct {
	EquipmentID int    `json:"equipment_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
	Note        string `json:"note"`
	ReporterID  string `json:"reporter_id" binding:"required"`
}

type StartRepairRequest struct {
	EquipmentID int              `json:"equipment_id" binding:"required"`
	Technician  *string          `json:"technician"`
	Cost        *decimal.Decimal `json:"cost"`
	Note        string           `json:"note"`
}
