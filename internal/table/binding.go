package table

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Row is one data context of the item binding, keyed by binding path.
type Row map[string]any

// Sorter is a sort directive on a binding path. Group marks a grouping sorter.
type Sorter struct {
	Path       string
	Descending bool
	Group      bool
}

// String renders the sorter for logs.
func (s Sorter) String() string {
	dir := "asc"
	if s.Descending {
		dir = "desc"
	}
	if s.Group {
		return fmt.Sprintf("group(%s %s)", s.Path, dir)
	}
	return fmt.Sprintf("sort(%s %s)", s.Path, dir)
}

// FilterOperator is a comparison operator for filters.
type FilterOperator string

const (
	OpContains   FilterOperator = "Contains"
	OpEQ         FilterOperator = "EQ"
	OpStartsWith FilterOperator = "StartsWith"
	OpEndsWith   FilterOperator = "EndsWith"
	OpGE         FilterOperator = "GE"
	OpLE         FilterOperator = "LE"
	OpGT         FilterOperator = "GT"
	OpLT         FilterOperator = "LT"
)

// Filter is a filter directive on a binding path.
//
// Filters on the same path are combined with OR; filters on different paths
// are combined with AND.
type Filter struct {
	Path     string
	Operator FilterOperator
	Value    any
}

// Query carries the binding's directives to a RowSource.
type Query struct {
	Sorters []Sorter
	Filters []Filter
}

// RowSource loads rows for an item binding.
type RowSource interface {
	Load(ctx context.Context, q Query) ([]Row, error)
}

// StaticSource is a RowSource over an in-memory slice. Directives are
// evaluated by the binding itself.
type StaticSource []Row

// Load returns a copy of the rows.
func (s StaticSource) Load(_ context.Context, _ Query) ([]Row, error) {
	out := make([]Row, len(s))
	copy(out, s)
	return out, nil
}

// ItemBinding is the binding of a table's items aggregation. Sorting and
// filtering are evaluated client side over the loaded rows.
type ItemBinding struct {
	table    *Table
	template *Item
	rows     []Row
	sorters  []Sorter
	filters  []Filter
}

// Template returns the unbound template item.
func (b *ItemBinding) Template() *Item { return b.template }

// Sorters returns the active sort directives.
func (b *ItemBinding) Sorters() []Sorter {
	out := make([]Sorter, len(b.sorters))
	copy(out, b.sorters)
	return out
}

// GroupSorters returns the active grouping directives.
func (b *ItemBinding) GroupSorters() []Sorter {
	var out []Sorter
	for _, s := range b.sorters {
		if s.Group {
			out = append(out, s)
		}
	}
	return out
}

// Filters returns the active filter directives.
func (b *ItemBinding) Filters() []Filter {
	out := make([]Filter, len(b.filters))
	copy(out, b.filters)
	return out
}

// Query returns the binding's directives, sorters in evaluation order.
func (b *ItemBinding) Query() Query {
	return Query{Sorters: b.evaluationOrder(), Filters: b.Filters()}
}

// evaluationOrder returns grouping directives first, so that items of one
// group stay together, then the plain sorters. Relative order is kept.
func (b *ItemBinding) evaluationOrder() []Sorter {
	out := make([]Sorter, 0, len(b.sorters))
	out = append(out, b.GroupSorters()...)
	for _, s := range b.sorters {
		if !s.Group {
			out = append(out, s)
		}
	}
	return out
}

// Sort replaces the sort directives and re-materializes the items.
func (b *ItemBinding) Sort(sorters []Sorter) {
	b.sorters = append([]Sorter(nil), sorters...)
	b.refresh()
}

// Filter replaces the filter directives and re-materializes the items.
func (b *ItemBinding) Filter(filters []Filter) {
	b.filters = append([]Filter(nil), filters...)
	b.refresh()
}

// Length returns the number of rows passing the current filters.
func (b *ItemBinding) Length() int {
	return len(b.table.items)
}

func (b *ItemBinding) refresh() {
	rows := make([]Row, 0, len(b.rows))
	for _, r := range b.rows {
		if matchAll(r, b.filters) {
			rows = append(rows, r)
		}
	}
	if len(b.sorters) > 0 {
		order := b.evaluationOrder()
		sort.SliceStable(rows, func(i, j int) bool {
			for _, s := range order {
				c := CompareValues(rows[i][s.Path], rows[j][s.Path])
				if c == 0 {
					continue
				}
				if s.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	b.table.materialize(rows)
}

func matchAll(r Row, filters []Filter) bool {
	byPath := make(map[string][]Filter)
	var order []string
	for _, f := range filters {
		if _, ok := byPath[f.Path]; !ok {
			order = append(order, f.Path)
		}
		byPath[f.Path] = append(byPath[f.Path], f)
	}
	for _, path := range order {
		matched := false
		for _, f := range byPath[path] {
			if f.Match(r[path]) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Match reports whether v satisfies the filter. String operators compare
// case-insensitively.
func (f Filter) Match(v any) bool {
	switch f.Operator {
	case OpContains:
		return strings.Contains(strings.ToLower(FormatValue(v)), strings.ToLower(FormatValue(f.Value)))
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(FormatValue(v)), strings.ToLower(FormatValue(f.Value)))
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(FormatValue(v)), strings.ToLower(FormatValue(f.Value)))
	case OpEQ:
		return CompareValues(v, f.Value) == 0
	case OpGE:
		return CompareValues(v, f.Value) >= 0
	case OpLE:
		return CompareValues(v, f.Value) <= 0
	case OpGT:
		return CompareValues(v, f.Value) > 0
	case OpLT:
		return CompareValues(v, f.Value) < 0
	default:
		return false
	}
}

// CompareValues orders two cell values. nil sorts first, numbers compare
// numerically, times chronologically, everything else by string form.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// FormatValue renders a cell value as text. Dates print as YYYY-MM-DD.
func FormatValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.Format("2006-01-02")
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
