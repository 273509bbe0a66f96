package events

import "sync"

// Bus is the engine's pub/sub broker. The coordinator and monitor publish;
// dashboards and the websocket stream subscribe. Subscribers are tracked by
// id so unsubscribing is O(1) and shutdown can close every channel once.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Event]map[int]chan any
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event]map[int]chan any)}
}

// Subscribe registers a listener for an event and returns the channel and an
// unsubscribe function. After Close the returned channel is already closed.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[e] == nil {
		b.subs[e] = make(map[int]chan any)
	}
	b.subs[e][id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[e][id]; ok {
			delete(b.subs[e], id)
			close(c)
		}
	}

	return ch, unsub
}

// Publish fan-outs the payload to subscribers without blocking the engine
// loop: a slow subscriber drops messages rather than stalling a trading pass.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Close shuts the bus down: every subscriber channel is closed and later
// Publish calls become no-ops. Run on engine shutdown so consumer goroutines
// drain and exit instead of blocking forever.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, topic := range b.subs {
		for id, ch := range topic {
			delete(topic, id)
			close(ch)
		}
	}
}
