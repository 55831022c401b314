package models

import (
	"strconv"
	"time"
)

type UsageKind string

const (
	UsageKindBorrow   UsageKind = "borrow"
	UsageKindWithdraw UsageKind = "withdraw"
)

func (k UsageKind) IsValid() bool {
	return k == UsageKindBorrow || k == UsageKindWithdraw
}

type UsageStatus string

const (
	UsageStatusActive        UsageStatus = "active"
	UsageStatusPendingReturn UsageStatus = "pending_return"
	UsageStatusReturned      UsageStatus = "returned"
)

// UsageRecord captures one borrow or withdraw action. A borrow reserves its
// quantity from the equipment's available pool at creation and restores it
// exactly once, when the record transitions to returned. Withdraw records
// have no return path.
type UsageRecord struct {
	ID                string      `json:"id" db:"id"`
	EquipmentID       int         `json:"equipment_id" db:"equipment_id"`
	UserID            string      `json:"user_id" db:"user_id"`
	Quantity          int         `json:"quantity" db:"quantity"`
	Kind              UsageKind   `json:"kind" db:"kind"`
	Status            UsageStatus `json:"status" db:"status"`
	Note              string      `json:"note,omitempty" db:"note"`
	RequestedAt       time.Time   `json:"requested_at" db:"requested_at"`
	ReturnRequestedAt *time.Time  `json:"return_requested_at,omitempty" db:"return_requested_at"`
	ReturnConfirmedAt *time.Time  `json:"return_confirmed_at,omitempty" db:"return_confirmed_at"`
}

func (u *UsageRecord) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   u.ID,
		ResourceType: "usage",
	}
}

type UsageRequest struct {
	EquipmentID int    `json:"equipment_id" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
	Note        string `json:"note"`
}

const (
	ReturnOutcomeSuccess         = "success"
	ReturnOutcomeAlreadyReturned = "already_returned"
	ReturnOutcomeFailed          = "failed"
)

// ReturnOutcome is the per-record result of a bulk return confirmation. One
// record failing never rolls back the others.
type ReturnOutcome struct {
	UsageID string `json:"usage_id"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

func itoa(id int) string {
	return strconv.Itoa(id)
}
