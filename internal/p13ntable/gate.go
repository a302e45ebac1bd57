package p13ntable

import (
	"context"
	"sync"
)

type gateState int

const (
	gatePending gateState = iota
	gateReady
)

// gate is a one-shot initialization barrier. It starts pending and moves to
// ready exactly once; every waiter is released on that transition and sees
// the same result.
type gate struct {
	mu    sync.Mutex
	state gateState
	err   error
	ready chan struct{}
}

func newGate() *gate {
	return &gate{ready: make(chan struct{})}
}

// open moves the gate to ready with the given result. Only the first call has
// any effect; it reports whether this call opened the gate.
func (g *gate) open(err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == gateReady {
		return false
	}
	g.state = gateReady
	g.err = err
	close(g.ready)
	return true
}

// isReady reports whether the gate has opened.
func (g *gate) isReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gateReady
}

func (g *gate) result() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// wait blocks until the gate opens or ctx is done. It returns the gate's
// result, or ctx.Err() if ctx ended first.
func (g *gate) wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return g.result()
	default:
	}

	select {
	case <-g.ready:
		return g.result()
	case <-ctx.Done():
		return ctx.Err()
	}
}
