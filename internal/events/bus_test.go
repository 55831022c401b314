package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(EquipmentChanged, "42")

	select {
	case event := <-ch:
		assert.Equal(t, EquipmentChanged, event.Kind)
		assert.Equal(t, "42", event.ResourceID)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus(zap.NewNop())

	_, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		bus.Publish(UsageRecordChanged, "a")
		bus.Publish(UsageRecordChanged, "b")
		bus.Publish(UsageRecordChanged, "c")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	bus := NewBus(zap.NewNop())

	ch, cancel := bus.Subscribe(1)
	cancel()

	bus.Publish(RepairChanged, "x")

	_, open := <-ch
	assert.False(t, open)
}
