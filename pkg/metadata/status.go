package metadata

import "fmt"

// LifecycleState is the persisted business state of an equipment item. Stock
// exhaustion never changes it; only repair and retirement transitions do.
type LifecycleState string

const (
	LifecycleOperational LifecycleState = "operational"
	LifecycleDamaged     LifecycleState = "damaged"
	LifecycleRepairing   LifecycleState = "repairing"
	LifecycleRetired     LifecycleState = "retired"
	LifecycleLost        LifecycleState = "lost"
)

func NewLifecycleState(value string) (LifecycleState, error) {
	state := LifecycleState(value)
	if !state.isValid() {
		return "", fmt.Errorf("invalid lifecycle state: %s", value)
	}
	return state, nil
}

func (s LifecycleState) isValid() bool {
	switch s {
	case LifecycleOperational, LifecycleDamaged, LifecycleRepairing, LifecycleRetired, LifecycleLost:
		return true
	default:
		return false
	}
}

// Status is the combined state exposed on the external interface. It is
// recomputed from the lifecycle state and the current quantities on every
// read, never stored on its own.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusInUse      Status = "in_use" // accepted on input for legacy data
	StatusLowStock   Status = "low_stock"
	StatusOutOfStock Status = "out_of_stock"
	StatusDamaged    Status = "damaged"
	StatusRepairing  Status = "repairing"
	StatusLost       Status = "lost"
	StatusRetired    Status = "retired"
)

func NewStatus(value string) (Status, error) {
	status := Status(value)
	if !status.isValid() {
		return "", fmt.Errorf("invalid status: %s", value)
	}
	return status, nil
}

func (s Status) isValid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusLowStock, StatusOutOfStock,
		StatusDamaged, StatusRepairing, StatusLost, StatusRetired:
		return true
	default:
		return false
	}
}

// DeriveStatus combines the lifecycle state with the quantity-derived stock
// state. A non-operational lifecycle always wins over quantity-derived values.
func DeriveStatus(state LifecycleState, availableQuantity, minStock int) Status {
	switch state {
	case LifecycleDamaged:
		return StatusDamaged
	case LifecycleRepairing:
		return StatusRepairing
	case LifecycleRetired:
		return StatusRetired
	case LifecycleLost:
		return StatusLost
	}

	if availableQuantity <= 0 {
		return StatusOutOfStock
	}
	if minStock > 0 && availableQuantity <= minStock {
		return StatusLowStock
	}
	return StatusAvailable
}
