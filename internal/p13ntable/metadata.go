package p13ntable

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/table"
)

// ColumnMetadata is the key, header label and binding path of one column.
type ColumnMetadata = p13n.Property

// ErrCellNotBound is returned when a column has no bound cell to read its
// binding path from.
var ErrCellNotBound = errors.New("column cell has no binding path")

// extractMetadata reads one entry per column, in column order. Paths come
// from the first rendered item, or from the template while nothing is rendered.
func extractMetadata(w *table.Table) ([]ColumnMetadata, error) {
	source := w.ItemBinding().Template()
	if items := w.Items(); len(items) > 0 {
		source = items[0]
	}

	cols := w.Columns()
	cells := source.Cells()
	meta := make([]ColumnMetadata, 0, len(cols))
	for i, col := range cols {
		if i >= len(cells) || cells[i].BindingPath() == "" {
			return nil, fmt.Errorf("%w: column %q at index %d", ErrCellNotBound, col.ID(), i)
		}
		meta = append(meta, ColumnMetadata{
			Key:   col.ID(),
			Label: col.Header(),
			Path:  cells[i].BindingPath(),
		})
	}
	return meta, nil
}
