package p13ntable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/table"
)

// Reconcile makes the table match s: column visibility, column and cell
// order, sort and group directives, then filter directives.
//
// An unresolvable Sorter or Groups key aborts the pass with an error after
// visibility and order have been applied. Filter problems never fail the
// pass: they are logged, the binding's filters are cleared and the filter
// info is hidden.
func (t *Table) Reconcile(s p13n.State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconcile(s)
}

func (t *Table) reconcile(s p13n.State) error {
	selected := make(map[string]bool, len(s.Columns))
	for _, it := range s.Columns {
		selected[it.Key] = true
	}
	for _, col := range t.widget.Columns() {
		col.SetVisible(selected[col.ID()])
	}

	moved := 0
	for i, it := range s.Columns {
		if t.moveColumn(it, i) {
			moved++
		}
	}

	sorters, err := t.sortDirectives(s)
	if err != nil {
		return err
	}
	binding := t.widget.ItemBinding()
	binding.Sort(sorters)

	info := t.widget.FilterInfo()
	filters, labels, err := t.filterDirectives(s)
	if err != nil {
		t.logger.Warn("p13n filters not applied", "error", err)
		filters = nil
		binding.Filter(nil)
		info.SetVisible(false)
		info.SetText("")
	} else {
		binding.Filter(filters)
		info.SetVisible(len(filters) > 0)
		info.SetText(filterInfoText(labels))
	}

	t.logger.Debug("p13n state reconciled",
		"visible", len(s.Columns),
		"moved", moved,
		"sorters", len(sorters),
		"filters", len(filters),
		"items", binding.Length(),
	)
	return nil
}

// moveColumn moves the column keyed by it to index i, together with the
// matching cell of the template and of every item. Unknown keys are ignored.
// It reports whether anything moved.
func (t *Table) moveColumn(it p13n.Item, i int) bool {
	col, ok := t.widget.ColumnByID(it.Key)
	if !ok {
		t.logger.Debug("p13n column not found", "key", it.Key)
		return false
	}
	old := t.widget.IndexOfColumn(col)
	if old == i {
		return false
	}

	t.widget.RemoveColumn(col)
	t.widget.InsertColumn(col, i)

	moveCell := func(item *table.Item) {
		cell, err := item.RemoveCell(old)
		if err != nil {
			t.logger.Warn("p13n cell not moved", "key", it.Key, "error", err)
			return
		}
		item.InsertCell(cell, i)
	}
	moveCell(t.widget.ItemBinding().Template())
	for _, item := range t.widget.Items() {
		moveCell(item)
	}
	return true
}

func (t *Table) path(key string) (string, error) {
	if t.helper == nil {
		return "", ErrNotInitialized
	}
	return t.helper.Path(key)
}

// sortDirectives maps Sorter entries, then Groups entries, to sorters.
func (t *Table) sortDirectives(s p13n.State) ([]table.Sorter, error) {
	sorters := make([]table.Sorter, 0, len(s.Sorter)+len(s.Groups))
	for _, it := range s.Sorter {
		path, err := t.path(it.Key)
		if err != nil {
			return nil, fmt.Errorf("sorter %q: %w", it.Key, err)
		}
		sorters = append(sorters, table.Sorter{Path: path, Descending: it.Descending})
	}
	for _, it := range s.Groups {
		path, err := t.path(it.Key)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", it.Key, err)
		}
		sorters = append(sorters, table.Sorter{Path: path, Descending: it.Descending, Group: true})
	}
	return sorters, nil
}

// filterDirectives builds one Contains filter per condition, on the path of
// the condition's own key, with the condition's first value. Keys are
// visited in sorted order. It also returns the labels of filtered keys.
func (t *Table) filterDirectives(s p13n.State) ([]table.Filter, []string, error) {
	keys := make([]string, 0, len(s.Filter))
	for k := range s.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var filters []table.Filter
	var labels []string
	for _, key := range keys {
		conds := s.Filter[key]
		if len(conds) == 0 {
			continue
		}
		path, err := t.path(key)
		if err != nil {
			return nil, nil, fmt.Errorf("filter %q: %w", key, err)
		}
		for _, c := range conds {
			if len(c.Values) == 0 {
				return nil, nil, fmt.Errorf("filter %q: condition %q has no value", key, c.Operator)
			}
			filters = append(filters, table.Filter{Path: path, Operator: table.OpContains, Value: c.Values[0]})
		}
		label := key
		if p, ok := t.helper.Property(key); ok && p.Label != "" {
			label = p.Label
		}
		labels = append(labels, label)
	}
	return filters, labels, nil
}

func filterInfoText(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return "Filtered by: " + strings.Join(labels, ", ")
}
