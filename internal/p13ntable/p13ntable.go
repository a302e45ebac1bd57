// Package p13ntable implements a table whose columns end users can
// personalize: show and hide, reorder, sort, group and filter.
//
// Storage and presentation of personalization choices belong to the p13n
// engine. This package owns the reconciliation between an engine State and
// the table: column visibility, column order (kept index-aligned with the
// cells of every item and of the row template), sort and group directives on
// the item binding, and filter directives.
//
// Nothing happens until the table first finishes updating its items. At that
// point column metadata is extracted, the table registers with the engine and
// subscribes to its state changes. ApplyState, RetrieveState and OpenP13n wait
// for that moment.
package p13ntable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/table"
)

// DefaultTitle is the title of the personalization dialog.
const DefaultTitle = "Table Settings"

// ColumnsAggregation is the aggregation the Columns facet personalizes.
const ColumnsAggregation = "columns"

// ErrNotInitialized is returned when metadata is needed before the table
// finished its first update.
var ErrNotInitialized = errors.New("personalization not initialized")

// ErrClosed is returned by calls waiting on a table closed before its first
// update.
var ErrClosed = errors.New("table closed")

// Engine is the personalization engine as consumed by a Table.
type Engine interface {
	Register(c p13n.Control, r p13n.Registration) error
	Deregister(c p13n.Control)
	AttachStateChange(h p13n.StateChangeHandler) (detach func())
	Show(ctx context.Context, c p13n.Control, facets []p13n.Facet, opts p13n.ShowOptions) (*p13n.Dialog, error)
	ApplyState(ctx context.Context, c p13n.Control, s p13n.State) (p13n.State, error)
	RetrieveState(ctx context.Context, c p13n.Control) (p13n.State, error)
	Reset(ctx context.Context, c p13n.Control) (p13n.State, error)
}

// Table is a personalizable table.
type Table struct {
	widget       *table.Table
	engine       Engine
	modification p13n.ModificationHandler
	logger       *slog.Logger
	title        string

	// mu serializes structural changes: reconciliation and item updates.
	mu sync.Mutex

	gate     *gate
	closed   bool
	metadata []ColumnMetadata
	helper   *p13n.MetadataHelper
	detach   func()
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the table's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// WithModification sets the modification handler registered with the engine.
func WithModification(m p13n.ModificationHandler) Option {
	return func(t *Table) { t.modification = m }
}

// WithTitle sets the personalization dialog title.
func WithTitle(title string) Option {
	return func(t *Table) { t.title = title }
}

// New wraps widget as a personalizable table using engine. The table
// initializes personalization the first time widget finishes updating.
func New(widget *table.Table, engine Engine, opts ...Option) *Table {
	t := &Table{
		widget: widget,
		engine: engine,
		logger: slog.Default(),
		title:  DefaultTitle,
		gate:   newGate(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("table", widget.ID())

	widget.AttachUpdateFinishedOnce(t.initialize)
	return t
}

// ID returns the table's identifier.
func (t *Table) ID() string { return t.widget.ID() }

// Ready reports whether personalization has been initialized successfully.
func (t *Table) Ready() bool { return t.gate.isReady() && t.gate.result() == nil }

// Metadata returns the column metadata extracted at initialization, or nil
// before that.
func (t *Table) Metadata() []ColumnMetadata {
	if !t.gate.isReady() || t.metadata == nil {
		return nil
	}
	out := make([]ColumnMetadata, len(t.metadata))
	copy(out, t.metadata)
	return out
}

// initialize runs once, on the widget's first update. It extracts column
// metadata, registers with the engine, and subscribes to state changes.
func (t *Table) initialize() {
	if t.gate.isReady() {
		return
	}

	meta, err := extractMetadata(t.widget)
	if err != nil {
		t.logger.Error("p13n metadata extraction failed", "error", err)
		t.gate.open(fmt.Errorf("initialize %s: %w", t.ID(), err))
		return
	}
	t.metadata = meta
	t.helper = p13n.NewMetadataHelper(meta)

	err = t.engine.Register(t, p13n.Registration{
		Helper:       t.helper,
		Modification: t.modification,
		Controllers: map[p13n.Facet]p13n.Controller{
			p13n.FacetColumns: &p13n.SelectionController{Control: t, TargetAggregation: ColumnsAggregation},
			p13n.FacetSorter:  &p13n.SortController{Control: t},
			p13n.FacetGroups:  &p13n.GroupController{Control: t},
			p13n.FacetFilter:  &p13n.FilterController{Control: t},
		},
	})
	if err != nil {
		t.logger.Error("p13n registration failed", "error", err)
		t.gate.open(fmt.Errorf("initialize %s: %w", t.ID(), err))
		return
	}

	t.detach = t.engine.AttachStateChange(t.handleStateChange)
	t.restore()
	t.gate.open(nil)

	t.logger.Info("p13n initialized", "columns", len(meta))
}

// restore reconciles the table with state its modification handler kept
// from an earlier session. Tables without their own handler start from the
// baseline and have nothing to restore.
func (t *Table) restore() {
	if t.modification == nil {
		return
	}
	ctx := context.Background()
	if _, found, err := t.modification.Load(ctx, t.ID()); err != nil || !found {
		if err != nil {
			t.logger.Warn("p13n stored state not restored", "error", err)
		}
		return
	}
	s, err := t.engine.RetrieveState(ctx, t)
	if err != nil {
		t.logger.Warn("p13n stored state not restored", "error", err)
		return
	}
	if err := t.reconcile(s); err != nil {
		t.logger.Warn("p13n stored state not restored", "error", err)
		return
	}
	t.logger.Info("p13n stored state restored")
}

// handleStateChange reconciles events addressed to this table.
func (t *Table) handleStateChange(ev p13n.StateChange) {
	if ev.Control != p13n.Control(t) {
		return
	}
	if err := t.Reconcile(ev.State); err != nil {
		t.logger.Error("p13n reconciliation failed", "event_id", ev.ID, "error", err)
	}
}

// OpenP13n asks the engine for the personalization dialog covering every
// facet, anchored at origin.
func (t *Table) OpenP13n(ctx context.Context, origin string) (*p13n.Dialog, error) {
	if err := t.gate.wait(ctx); err != nil {
		return nil, err
	}
	return t.engine.Show(ctx, t, p13n.Facets, p13n.ShowOptions{Title: t.title, Source: origin})
}

// ApplyState waits for initialization and hands s to the engine. The engine
// announces the change, which reconciles the table before ApplyState returns.
func (t *Table) ApplyState(ctx context.Context, s p13n.State) (p13n.State, error) {
	if err := t.gate.wait(ctx); err != nil {
		return p13n.State{}, err
	}
	return t.engine.ApplyState(ctx, t, s)
}

// RetrieveState waits for initialization and returns the engine's state.
func (t *Table) RetrieveState(ctx context.Context) (p13n.State, error) {
	if err := t.gate.wait(ctx); err != nil {
		return p13n.State{}, err
	}
	return t.engine.RetrieveState(ctx, t)
}

// ResetState waits for initialization and restores the engine's baseline.
func (t *Table) ResetState(ctx context.Context) (p13n.State, error) {
	if err := t.gate.wait(ctx); err != nil {
		return p13n.State{}, err
	}
	return t.engine.Reset(ctx, t)
}

// Refresh loads rows from src with the binding's current directives and
// updates the items. The first successful refresh initializes personalization.
func (t *Table) Refresh(ctx context.Context, src table.RowSource) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := src.Load(ctx, t.widget.ItemBinding().Query())
	if err != nil {
		return fmt.Errorf("load rows for %s: %w", t.ID(), err)
	}
	t.widget.Update(rows)
	return nil
}

// Close detaches from state changes and deregisters from the engine. A table
// closed before its first update never registers, and pending calls fail
// with ErrClosed.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gate.open(ErrClosed) || t.closed || t.gate.result() != nil {
		return
	}
	t.closed = true
	if t.detach != nil {
		t.detach()
	}
	t.engine.Deregister(t)
}

// SelectionItems reports the columns and their visibility. The engine reads
// it during registration, while the table is already locked.
func (t *Table) SelectionItems(aggregation string) []p13n.SelectionItem {
	if aggregation != ColumnsAggregation {
		return nil
	}
	cols := t.widget.Columns()
	items := make([]p13n.SelectionItem, len(cols))
	for i, c := range cols {
		items[i] = p13n.SelectionItem{Key: c.ID(), Visible: c.Visible()}
	}
	return items
}

// SortState reports the binding's sort (group=false) or grouping
// (group=true) directives as keys. Paths unknown to the metadata are skipped.
func (t *Table) SortState(group bool) []p13n.SortItem {
	keys := t.keysByPath()
	var out []p13n.SortItem
	for _, s := range t.widget.ItemBinding().Sorters() {
		if s.Group != group {
			continue
		}
		if key, ok := keys[s.Path]; ok {
			out = append(out, p13n.SortItem{Key: key, Descending: s.Descending})
		}
	}
	return out
}

// FilterState reports the binding's filter directives as conditions by key.
func (t *Table) FilterState() map[string][]p13n.Condition {
	keys := t.keysByPath()
	out := make(map[string][]p13n.Condition)
	for _, f := range t.widget.ItemBinding().Filters() {
		key, ok := keys[f.Path]
		if !ok {
			continue
		}
		out[key] = append(out[key], p13n.Condition{Operator: string(f.Operator), Values: []any{f.Value}})
	}
	return out
}

func (t *Table) keysByPath() map[string]string {
	keys := make(map[string]string, len(t.metadata))
	for _, m := range t.metadata {
		keys[m.Path] = m.Key
	}
	return keys
}
