package p13n

import (
	"sort"
	"sync"
)

// StateChange is announced after a control's state changed.
type StateChange struct {
	ID      string
	Control Control
	State   State
}

// StateChangeHandler receives state-change events. Handlers run synchronously
// on the publishing goroutine, in subscription order.
type StateChangeHandler func(StateChange)

// bus fans state-change events out to every subscriber. Subscribers filter
// events by control themselves.
type bus struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[uint64]StateChangeHandler
}

func newBus() *bus {
	return &bus{handlers: make(map[uint64]StateChangeHandler)}
}

// subscribe adds h and returns a func that removes it. The func is idempotent.
func (b *bus) subscribe(h StateChangeHandler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// publish delivers ev to a snapshot of the current subscribers. Each
// subscriber gets its own copy of the state.
func (b *bus) publish(ev StateChange) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]StateChangeHandler, len(ids))
	for i, id := range ids {
		handlers[i] = b.handlers[id]
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(StateChange{ID: ev.ID, Control: ev.Control, State: ev.State.Clone()})
	}
}

func (b *bus) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
