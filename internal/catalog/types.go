// Package catalog describes the tables the application can show.
//
// Each Layout lists its columns with key, header label and binding path.
// Layouts are registered at init time (see builtin.go) or loaded from a YAML
// file, and every personalizable table is built from one.
package catalog

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/p13ntable/internal/table"
	"gopkg.in/yaml.v3"
)

// FieldType is the data type of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldDate
	FieldBool
)

func (f FieldType) String() string {
	switch f {
	case FieldNumeric:
		return "numeric"
	case FieldDate:
		return "date"
	case FieldBool:
		return "bool"
	default:
		return "text"
	}
}

// ParseFieldType parses "text", "numeric", "date" or "bool".
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FieldText, nil
	case "numeric", "number":
		return FieldNumeric, nil
	case "date":
		return FieldDate, nil
	case "bool", "boolean":
		return FieldBool, nil
	default:
		return FieldText, fmt.Errorf("unknown field type %q", s)
	}
}

// UnmarshalYAML decodes a field type from its name.
func (f *FieldType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	ft, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*f = ft
	return nil
}

// ColumnSpec defines one column of a layout.
type ColumnSpec struct {
	Key    string    `yaml:"key"`    // Column ID, also the personalization key
	Label  string    `yaml:"label"`  // Header text
	Path   string    `yaml:"path"`   // Binding path (database column); defaults to Key
	Type   FieldType `yaml:"type"`   // Data type
	Hidden bool      `yaml:"hidden"` // Hidden until personalized
}

// BindingPath returns the column's binding path.
func (c ColumnSpec) BindingPath() string {
	if c.Path != "" {
		return c.Path
	}
	return c.Key
}

// Layout describes one table.
type Layout struct {
	Key     string       `yaml:"key"`    // Unique identifier: "sfdc_customers"
	Group   string       `yaml:"group"`  // Data source: "SFDC", "NS", "Anrok"
	Label   string       `yaml:"label"`  // Display name: "Customers"
	Source  string       `yaml:"source"` // Database table; defaults to Key
	Columns []ColumnSpec `yaml:"columns"`

	// Rows are served when no database is configured.
	Rows []table.Row `yaml:"rows"`
}

// SourceTable returns the database table the layout reads from.
func (l Layout) SourceTable() string {
	if l.Source != "" {
		return l.Source
	}
	return l.Key
}

// Validate checks that the layout has a key and uniquely keyed columns.
func (l Layout) Validate() error {
	if l.Key == "" {
		return fmt.Errorf("layout key is required")
	}
	if len(l.Columns) == 0 {
		return fmt.Errorf("layout %s: at least one column is required", l.Key)
	}
	seen := make(map[string]bool, len(l.Columns))
	for i, c := range l.Columns {
		if c.Key == "" {
			return fmt.Errorf("layout %s: column %d has no key", l.Key, i)
		}
		if seen[c.Key] {
			return fmt.Errorf("layout %s: duplicate column key %q", l.Key, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

// Column returns the column spec for key.
func (l Layout) Column(key string) (ColumnSpec, bool) {
	for _, c := range l.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// NewWidget builds a table widget for the layout: one column per spec and a
// template item whose cells are bound to each column's path.
func NewWidget(l Layout) *table.Table {
	w := table.New(l.Key)
	cells := make([]*table.Cell, len(l.Columns))
	for i, spec := range l.Columns {
		label := spec.Label
		if label == "" {
			label = spec.Key
		}
		col := table.NewColumn(spec.Key, label)
		col.SetVisible(!spec.Hidden)
		w.AddColumn(col)
		cells[i] = &table.Cell{Path: spec.BindingPath()}
	}
	w.BindItems(table.NewItem(cells...))
	return w
}
