package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	EquipmentChanged   Kind = "equipment_changed"
	UsageRecordChanged Kind = "usage_record_changed"
	RepairChanged      Kind = "repair_changed"
)

// Event is pushed after a commit so live views can refetch the resource. It
// carries the id only, never the record itself.
type Event struct {
	Kind       Kind      `json:"kind"`
	ResourceID string    `json:"resource_id"`
	At         time.Time `json:"at"`
}

// Bus fans committed-change events out to in-process subscribers. Publish
// never blocks: a subscriber that cannot keep up loses events instead of
// stalling the engines.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
	log  *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		log:  log,
	}
}

func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}

	return ch, cancel
}

func (b *Bus) Publish(kind Kind, resourceID string) {
	event := Event{
		Kind:       kind,
		ResourceID: resourceID,
		At:         time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.Warn("dropping change event for slow subscriber",
				zap.String("kind", string(kind)),
				zap.String("resource_id", resourceID),
			)
		}
	}
}
