package p13n

import (
	"context"
	"sync"
)

// ModificationHandler stores the personalization state of controls.
// Load reports found=false when no state has been stored for the control.
type ModificationHandler interface {
	Load(ctx context.Context, controlID string) (s State, found bool, err error)
	Save(ctx context.Context, controlID string, s State) error
	Reset(ctx context.Context, controlID string) error
}

// MemoryModification keeps states in process memory.
type MemoryModification struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryModification creates an empty in-memory handler.
func NewMemoryModification() *MemoryModification {
	return &MemoryModification{states: make(map[string]State)}
}

// Load returns the stored state for controlID.
func (m *MemoryModification) Load(_ context.Context, controlID string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[controlID]
	if !ok {
		return State{}, false, nil
	}
	return s.Clone(), true, nil
}

// Save stores s for controlID.
func (m *MemoryModification) Save(_ context.Context, controlID string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[controlID] = s.Clone()
	return nil
}

// Reset forgets the state stored for controlID.
func (m *MemoryModification) Reset(_ context.Context, controlID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, controlID)
	return nil
}
