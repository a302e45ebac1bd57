// Package table models the host table widget: an ordered column aggregation,
// materialized items whose cells are index-aligned with the columns, an
// unbound template item used to materialize future items, and the item
// binding that carries sort and filter directives.
//
// A Table is not safe for concurrent use. Owners that share a table across
// goroutines must serialize access themselves.
package table

import (
	"errors"
	"fmt"
)

// ErrCellIndex is returned when a cell index is outside an item's cells.
var ErrCellIndex = errors.New("cell index out of range")

// Column is a single entry of the columns aggregation.
type Column struct {
	id      string
	header  string
	visible bool
}

// NewColumn creates a visible column with the given ID and header text.
func NewColumn(id, header string) *Column {
	return &Column{id: id, header: header, visible: true}
}

// ID returns the column's stable identifier.
func (c *Column) ID() string { return c.id }

// Header returns the column's header text.
func (c *Column) Header() string { return c.header }

// Visible reports whether the column is shown.
func (c *Column) Visible() bool { return c.visible }

// SetVisible shows or hides the column. Hidden columns keep their position.
func (c *Column) SetVisible(visible bool) { c.visible = visible }

// Cell is one value of an item. Path is the binding path its text is bound to.
type Cell struct {
	Path  string
	Value any
}

// BindingPath returns the path of the cell's text binding.
func (c *Cell) BindingPath() string { return c.Path }

// Item is a column list item: one row of cells in column order.
type Item struct {
	cells []*Cell
}

// NewItem creates an item from the given cells.
func NewItem(cells ...*Cell) *Item {
	return &Item{cells: cells}
}

// Cells returns the item's cells in order. The slice is a copy.
func (it *Item) Cells() []*Cell {
	out := make([]*Cell, len(it.cells))
	copy(out, it.cells)
	return out
}

// Cell returns the cell at index i.
func (it *Item) Cell(i int) (*Cell, error) {
	if i < 0 || i >= len(it.cells) {
		return nil, fmt.Errorf("%w: %d of %d", ErrCellIndex, i, len(it.cells))
	}
	return it.cells[i], nil
}

// RemoveCell removes and returns the cell at index i.
func (it *Item) RemoveCell(i int) (*Cell, error) {
	c, err := it.Cell(i)
	if err != nil {
		return nil, err
	}
	it.cells = append(it.cells[:i], it.cells[i+1:]...)
	return c, nil
}

// InsertCell inserts c at index i. Indexes past the end append.
func (it *Item) InsertCell(c *Cell, i int) {
	it.cells = insertAt(it.cells, c, i)
}

// clone returns a deep copy of the item, bound to row.
func (it *Item) clone(row Row) *Item {
	cells := make([]*Cell, len(it.cells))
	for i, c := range it.cells {
		cells[i] = &Cell{Path: c.Path, Value: row[c.Path]}
	}
	return &Item{cells: cells}
}

// Indicator is a toggleable UI element such as the filter summary bar.
type Indicator struct {
	visible bool
	text    string
}

// Visible reports whether the indicator is shown.
func (i *Indicator) Visible() bool { return i.visible }

// SetVisible shows or hides the indicator.
func (i *Indicator) SetVisible(v bool) { i.visible = v }

// Text returns the indicator text.
func (i *Indicator) Text() string { return i.text }

// SetText sets the indicator text.
func (i *Indicator) SetText(s string) { i.text = s }

// Table is the host table widget.
type Table struct {
	id         string
	columns    []*Column
	items      []*Item
	binding    *ItemBinding
	filterInfo *Indicator

	updateFinished []func()
}

// New creates an empty table with the given ID.
func New(id string) *Table {
	t := &Table{
		id:         id,
		filterInfo: &Indicator{},
	}
	t.binding = &ItemBinding{table: t, template: NewItem()}
	return t
}

// ID returns the table's identifier.
func (t *Table) ID() string { return t.id }

// Columns returns the columns aggregation in order. The slice is a copy.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnByID returns the column with the given ID.
func (t *Table) ColumnByID(id string) (*Column, bool) {
	for _, c := range t.columns {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// IndexOfColumn returns the index of c, or -1 if c is not in the table.
func (t *Table) IndexOfColumn(c *Column) int {
	for i, col := range t.columns {
		if col == c {
			return i
		}
	}
	return -1
}

// AddColumn appends a column.
func (t *Table) AddColumn(c *Column) {
	t.columns = append(t.columns, c)
}

// RemoveColumn removes c and returns its former index, or -1 if absent.
func (t *Table) RemoveColumn(c *Column) int {
	i := t.IndexOfColumn(c)
	if i < 0 {
		return -1
	}
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
	return i
}

// InsertColumn inserts c at index i. Indexes past the end append.
func (t *Table) InsertColumn(c *Column, i int) {
	t.columns = insertAt(t.columns, c, i)
}

// Items returns the materialized items. The slice is a copy.
func (t *Table) Items() []*Item {
	out := make([]*Item, len(t.items))
	copy(out, t.items)
	return out
}

// ItemBinding returns the binding of the items aggregation.
func (t *Table) ItemBinding() *ItemBinding { return t.binding }

// BindItems sets the template used to materialize items.
func (t *Table) BindItems(template *Item) {
	t.binding.template = template
}

// FilterInfo returns the filter summary indicator.
func (t *Table) FilterInfo() *Indicator { return t.filterInfo }

// AttachUpdateFinishedOnce registers fn to run the next time the table
// finishes updating its items. It runs at most once.
func (t *Table) AttachUpdateFinishedOnce(fn func()) {
	t.updateFinished = append(t.updateFinished, fn)
}

// Update replaces the binding's rows, materializes items from the template,
// and fires update-finished handlers.
func (t *Table) Update(rows []Row) {
	t.binding.rows = rows
	t.binding.refresh()

	handlers := t.updateFinished
	t.updateFinished = nil
	for _, fn := range handlers {
		fn()
	}
}

// materialize rebuilds items from the template for the given rows.
func (t *Table) materialize(rows []Row) {
	items := make([]*Item, len(rows))
	for i, row := range rows {
		items[i] = t.binding.template.clone(row)
	}
	t.items = items
}

func insertAt[T any](s []T, v T, i int) []T {
	if i < 0 {
		i = 0
	}
	if i >= len(s) {
		return append(s, v)
	}
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
