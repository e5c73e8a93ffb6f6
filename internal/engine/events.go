package engine

import (
	"sync"
	"time"

	"ordercore/internal/logger"
	"ordercore/internal/order"
)

// StateChange is emitted for every applied transition. The transport layer
// relays these over its own wire; the engine only guarantees ordering per
// order id.
type StateChange struct {
	OrderID  string       `json:"order_id"`
	Symbol   string       `json:"symbol"`
	Previous order.Status `json:"previous_status"`
	New      order.Status `json:"new_status"`
	Reason   string       `json:"reason,omitempty"`
	At       time.Time    `json:"at"`
}

// Bus is a fan-out channel registry for state-change events. Publishing
// never blocks the engine: a subscriber that falls behind loses events and
// a warning is logged.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan StateChange
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan StateChange)}
}

func (b *Bus) Subscribe(buffer int) (<-chan StateChange, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan StateChange, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
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

func (b *Bus) Publish(ev StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warnf("event subscriber full, drop %s %s→%s", ev.OrderID, ev.Previous, ev.New)
		}
	}
}
