package models

import "time"

// StockHistoryEntry is an append-only audit row written alongside every stock
// adjustment. Never mutated after creation.
type StockHistoryEntry struct {
	ID               int       `json:"id" db:"id"`
	EquipmentID      int       `json:"equipment_id" db:"equipment_id"`
	Delta            int       `json:"delta" db:"delta"`
	PreviousQuantity int       `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity" db:"new_quantity"`
	Note             string    `json:"note" db:"note"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

func (s *StockHistoryEntry) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   itoa(s.EquipmentID),
		ResourceType: "stock",
	}
}

type RestockRequest struct {
	Delta int    `json:"delta" binding:"required"`
	Note  string `json:"note"`
}

// AdjustmentRow is one row of a bulk import or restock, as handed over by the
// CSV collaborator.
type AdjustmentRow struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code"`
	Kind        string `json:"type"`
	Quantity    int    `json:"quantity" binding:"required"`
	Unit        string `json:"unit"`
	MinStock    int    `json:"minstock"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

const (
	RowOutcomeSuccess = "success"
	RowOutcomeSkip    = "skip"
	RowOutcomeError   = "error"
)

// RowResult is the per-row outcome log returned to the bulk caller.
type RowResult struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Outcome string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AdjustmentMode controls what happens to a row that matches no existing
// equipment item: import mode creates a new item, restock mode skips it.
type AdjustmentMode string

const (
	ModeImport  AdjustmentMode = "import"
	ModeRestock AdjustmentMode = "restock"
)

func (m AdjustmentMode) IsValid() bool {
	return m == ModeImport || m == ModeRestock
}
