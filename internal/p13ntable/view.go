package p13ntable

import "github.com/JonMunkholm/p13ntable/internal/table"

// ViewColumn is a visible column as rendered.
type ViewColumn struct {
	Key   string
	Label string
}

// ViewRow is one rendered item. GroupHeader is set on the first item of
// each group when the binding is grouped.
type ViewRow struct {
	GroupHeader string
	Cells       []any
}

// View is a consistent snapshot of what the table shows.
type View struct {
	ID         string
	Columns    []ViewColumn
	Rows       []ViewRow
	Sorters    []table.Sorter
	FilterInfo string
	Filtered   bool
}

// View returns a snapshot of the visible columns and the cells of every item.
func (t *Table) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := View{
		ID:       t.ID(),
		Sorters:  t.widget.ItemBinding().Sorters(),
		Filtered: t.widget.FilterInfo().Visible(),
	}
	if v.Filtered {
		v.FilterInfo = t.widget.FilterInfo().Text()
	}

	var visible []int
	for i, col := range t.widget.Columns() {
		if !col.Visible() {
			continue
		}
		visible = append(visible, i)
		v.Columns = append(v.Columns, ViewColumn{Key: col.ID(), Label: col.Header()})
	}

	groupPath := ""
	if groups := t.widget.ItemBinding().GroupSorters(); len(groups) > 0 {
		groupPath = groups[0].Path
	}

	var lastGroup string
	for n, item := range t.widget.Items() {
		cells := item.Cells()
		row := ViewRow{Cells: make([]any, 0, len(visible))}
		for _, i := range visible {
			if i < len(cells) {
				row.Cells = append(row.Cells, cells[i].Value)
			}
		}
		if groupPath != "" {
			g := groupValue(cells, groupPath)
			if n == 0 || g != lastGroup {
				row.GroupHeader = g
				if row.GroupHeader == "" {
					row.GroupHeader = "(empty)"
				}
			}
			lastGroup = g
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func groupValue(cells []*table.Cell, path string) string {
	for _, c := range cells {
		if c.Path == path {
			return table.FormatValue(c.Value)
		}
	}
	return ""
}
