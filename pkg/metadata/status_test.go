package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLifecycleState(t *testing.T) {
	state, err := NewLifecycleState("repairing")
	assert.NoError(t, err)
	assert.Equal(t, LifecycleRepairing, state)

	_, err = NewLifecycleState("broken")
	assert.Error(t, err)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		state     LifecycleState
		available int
		minStock  int
		expected  Status
	}{
		{"operational with stock", LifecycleOperational, 5, 0, StatusAvailable},
		{"exhausted stock", LifecycleOperational, 0, 0, StatusOutOfStock},
		{"negative guard", LifecycleOperational, -1, 0, StatusOutOfStock},
		{"at min stock threshold", LifecycleOperational, 2, 2, StatusLowStock},
		{"below min stock threshold", LifecycleOperational, 1, 2, StatusLowStock},
		{"above min stock threshold", LifecycleOperational, 3, 2, StatusAvailable},
		{"min stock disabled", LifecycleOperational, 1, 0, StatusAvailable},
		{"damaged overrides stock", LifecycleDamaged, 10, 0, StatusDamaged},
		{"repairing overrides exhaustion", LifecycleRepairing, 0, 0, StatusRepairing},
		{"retired", LifecycleRetired, 5, 2, StatusRetired},
		{"lost", LifecycleLost, 5, 0, StatusLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveStatus(tt.state, tt.available, tt.minStock))
		})
	}
}
