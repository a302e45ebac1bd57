package p13n

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Control is a personalizable control. The engine keys its registry by the
// Control value, so implementations must be comparable (use pointer receivers).
// ID names the control in storage and logs.
type Control interface {
	ID() string
}

// Registration is what a control hands to the engine when it registers.
// A nil Modification falls back to the engine's default handler.
type Registration struct {
	Helper       *MetadataHelper
	Modification ModificationHandler
	Controllers  map[Facet]Controller
}

type registration struct {
	Registration
	baseline State

	// serializes load-merge-save-publish per control
	applyMu sync.Mutex
}

// ShowOptions configures the personalization dialog.
type ShowOptions struct {
	Title  string
	Source string
}

// Dialog describes the personalization dialog for one control.
type Dialog struct {
	Control string  `json:"control"`
	Title   string  `json:"title"`
	Source  string  `json:"source,omitempty"`
	Panels  []Panel `json:"panels"`
}

// Panel describes one facet of the dialog.
type Panel struct {
	Facet Facet       `json:"facet"`
	Items []PanelItem `json:"items"`
}

// PanelItem is one key as presented in a panel.
type PanelItem struct {
	Key        string      `json:"key"`
	Label      string      `json:"label"`
	Selected   bool        `json:"selected"`
	Descending bool        `json:"descending,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Engine is the process-wide personalization authority.
type Engine struct {
	mu       sync.RWMutex
	registry map[Control]*registration

	bus          *bus
	modification ModificationHandler
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithModification sets the handler used by registrations that bring none.
func WithModification(m ModificationHandler) Option {
	return func(e *Engine) { e.modification = m }
}

// NewEngine creates an engine. By default states are kept in memory.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry: make(map[Control]*registration),
		bus:      newBus(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.modification == nil {
		e.modification = NewMemoryModification()
	}
	return e
}

// Register adds c to the registry. The control's current structure, as read
// by its controllers, becomes its baseline state.
func (e *Engine) Register(c Control, r Registration) error {
	if r.Helper == nil || len(r.Controllers) == 0 {
		return fmt.Errorf("%w: %s needs a helper and at least one controller", ErrInvalidRegistration, c.ID())
	}
	for facet, ctrl := range r.Controllers {
		if ctrl == nil || ctrl.Facet() != facet {
			return fmt.Errorf("%w: controller for %s does not serve that facet", ErrInvalidRegistration, facet)
		}
	}
	if r.Modification == nil {
		r.Modification = e.modification
	}

	var baseline State
	for _, facet := range Facets {
		if ctrl, ok := r.Controllers[facet]; ok {
			ctrl.CurrentState(&baseline)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.registry[c]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, c.ID())
	}
	e.registry[c] = &registration{Registration: r, baseline: baseline.normalized()}

	e.logger.Debug("p13n control registered",
		"control", c.ID(),
		"properties", len(r.Helper.Properties()),
		"controllers", len(r.Controllers),
	)
	return nil
}

// Deregister removes c from the registry.
func (e *Engine) Deregister(c Control) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.registry, c)
}

// IsRegistered reports whether c is registered.
func (e *Engine) IsRegistered(c Control) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.registry[c]
	return ok
}

// AttachStateChange subscribes h to every state change of every control.
// The returned func detaches it.
func (e *Engine) AttachStateChange(h StateChangeHandler) (detach func()) {
	return e.bus.subscribe(h)
}

func (e *Engine) lookup(c Control) (*registration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reg, ok := e.registry[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, c.ID())
	}
	return reg, nil
}

func (e *Engine) current(ctx context.Context, c Control, reg *registration) (State, error) {
	s, found, err := reg.Modification.Load(ctx, c.ID())
	if err != nil {
		return State{}, fmt.Errorf("load state for %s: %w", c.ID(), err)
	}
	if !found {
		return reg.baseline.Clone(), nil
	}
	return s.normalized(), nil
}

// RetrieveState returns the canonical state of c.
func (e *Engine) RetrieveState(ctx context.Context, c Control) (State, error) {
	reg, err := e.lookup(c)
	if err != nil {
		return State{}, err
	}
	return e.current(ctx, c, reg)
}

// ApplyState merges change into the state of c, stores the result and
// announces it. Facets absent from change are left untouched. The new
// canonical state is returned.
func (e *Engine) ApplyState(ctx context.Context, c Control, change State) (State, error) {
	reg, err := e.lookup(c)
	if err != nil {
		return State{}, err
	}

	reg.applyMu.Lock()
	defer reg.applyMu.Unlock()

	cur, err := e.current(ctx, c, reg)
	if err != nil {
		return State{}, err
	}

	next := cur.Clone()
	changed := false
	for _, facet := range Facets {
		ctrl, ok := reg.Controllers[facet]
		if !ok {
			continue
		}
		touched, err := ctrl.Update(&next, change, reg.Helper)
		if err != nil {
			return State{}, fmt.Errorf("apply state to %s: %w", c.ID(), err)
		}
		changed = changed || touched
	}
	if !changed {
		return cur, nil
	}

	if err := reg.Modification.Save(ctx, c.ID(), next); err != nil {
		return State{}, fmt.Errorf("save state for %s: %w", c.ID(), err)
	}

	e.publish(c, next)
	return next.Clone(), nil
}

// Reset discards the stored state of c and announces its baseline.
func (e *Engine) Reset(ctx context.Context, c Control) (State, error) {
	reg, err := e.lookup(c)
	if err != nil {
		return State{}, err
	}

	reg.applyMu.Lock()
	defer reg.applyMu.Unlock()

	if err := reg.Modification.Reset(ctx, c.ID()); err != nil {
		return State{}, fmt.Errorf("reset state for %s: %w", c.ID(), err)
	}

	base := reg.baseline.Clone()
	e.publish(c, base)
	return base.Clone(), nil
}

// Show describes the personalization dialog of c for the given facets.
// Facets without a controller are left out.
func (e *Engine) Show(ctx context.Context, c Control, facets []Facet, opts ShowOptions) (*Dialog, error) {
	reg, err := e.lookup(c)
	if err != nil {
		return nil, err
	}
	state, err := e.current(ctx, c, reg)
	if err != nil {
		return nil, err
	}

	d := &Dialog{Control: c.ID(), Title: opts.Title, Source: opts.Source}
	for _, facet := range facets {
		ctrl, ok := reg.Controllers[facet]
		if !ok {
			e.logger.Debug("p13n facet has no controller", "control", c.ID(), "facet", facet)
			continue
		}
		d.Panels = append(d.Panels, ctrl.Panel(state, reg.Helper))
	}
	return d, nil
}

func (e *Engine) publish(c Control, s State) {
	ev := StateChange{ID: uuid.NewString(), Control: c, State: s}
	e.logger.Debug("p13n state changed",
		"control", c.ID(),
		"event_id", ev.ID,
		"columns", len(s.Columns),
		"sorters", len(s.Sorter),
		"groups", len(s.Groups),
		"filtered", s.HasFilter(),
	)
	e.bus.publish(ev)
}
