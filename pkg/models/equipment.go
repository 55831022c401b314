package models

import (
	"time"

	"toolroom/pkg/metadata"
)

type EquipmentKind string

const (
	KindBorrowable EquipmentKind = "borrowable"
	KindConsumable EquipmentKind = "consumable"
)

func (k EquipmentKind) IsValid() bool {
	return k == KindBorrowable || k == KindConsumable
}

// EquipmentItem is the ledger entry and the single source of truth for stock
// quantities. Quantity fields are mutated only through engine transactions
// that re-read the row inside the same transaction.
type EquipmentItem struct {
	ID                int                      `json:"id" db:"id"`
	Name              string                   `json:"name" db:"name"`
	Code              *string                  `json:"code,omitempty" db:"code"`
	Kind              EquipmentKind            `json:"kind" db:"kind"`
	Quantity          int                      `json:"quantity" db:"quantity"`
	AvailableQuantity int                      `json:"available_quantity" db:"available_quantity"`
	MinStock          int                      `json:"min_stock" db:"min_stock"`
	Unit              string                   `json:"unit" db:"unit"`
	Category          string                   `json:"category" db:"category"`
	Location          string                   `json:"location" db:"location"`
	Description       string                   `json:"description" db:"description"`
	LifecycleState    metadata.LifecycleState  `json:"lifecycle_state" db:"lifecycle_state"`
	Status            metadata.Status          `json:"status" db:"-"`
	CreatedAt         time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at" db:"updated_at"`
}

// RefreshStatus recomputes the derived combined status after any quantity or
// lifecycle change.
func (e *EquipmentItem) RefreshStatus() {
	e.Status = metadata.DeriveStatus(e.LifecycleState, e.AvailableQuantity, e.MinStock)
}

func (e *EquipmentItem) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   itoa(e.ID),
		ResourceType: "equipment",
	}
}

type CreateEquipmentRequest struct {
	Name        string  `json:"name" binding:"required"`
	Code        *string `json:"code"`
	Kind        string  `json:"kind" binding:"required"`
	Quantity    int     `json:"quantity" binding:"min=0"`
	MinStock    int     `json:"min_stock"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
}
