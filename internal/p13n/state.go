// Package p13n is the personalization engine shared by every personalizable
// control in the process.
//
// Controls register a metadata helper, a modification handler and one
// controller per facet. The engine keeps a registry keyed by control identity,
// owns the canonical personalization state of each control, and announces
// every change on a state-change bus. Subscribers filter events by control.
package p13n

// Facet names one personalizable dimension of a control.
type Facet string

const (
	FacetColumns Facet = "Columns"
	FacetSorter  Facet = "Sorter"
	FacetGroups  Facet = "Groups"
	FacetFilter  Facet = "Filter"
)

// Facets lists every facet in dialog order.
var Facets = []Facet{FacetColumns, FacetSorter, FacetGroups, FacetFilter}

// Item is a selected entry of the Columns facet.
type Item struct {
	Key string `json:"key"`
}

// SortItem is an entry of the Sorter or Groups facet.
type SortItem struct {
	Key        string `json:"key"`
	Descending bool   `json:"descending"`
}

// Condition is one filter condition on a key.
type Condition struct {
	Operator string `json:"operator"`
	Values   []any  `json:"values"`
}

// State is the personalization state of one control.
//
// When passed to ApplyState, a nil field leaves that facet unchanged and an
// empty non-nil field clears it. States returned by the engine always carry
// every facet.
type State struct {
	Columns []Item                 `json:"Columns"`
	Sorter  []SortItem             `json:"Sorter"`
	Groups  []SortItem             `json:"Groups"`
	Filter  map[string][]Condition `json:"Filter"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Columns: cloneSlice(s.Columns),
		Sorter:  cloneSlice(s.Sorter),
		Groups:  cloneSlice(s.Groups),
	}
	if s.Filter != nil {
		out.Filter = make(map[string][]Condition, len(s.Filter))
		for k, conds := range s.Filter {
			cc := make([]Condition, len(conds))
			for i, c := range conds {
				cc[i] = Condition{Operator: c.Operator, Values: cloneSlice(c.Values)}
			}
			out.Filter[k] = cc
		}
	}
	return out
}

// normalized returns a copy of s with every facet non-nil.
func (s State) normalized() State {
	out := s.Clone()
	if out.Columns == nil {
		out.Columns = []Item{}
	}
	if out.Sorter == nil {
		out.Sorter = []SortItem{}
	}
	if out.Groups == nil {
		out.Groups = []SortItem{}
	}
	if out.Filter == nil {
		out.Filter = map[string][]Condition{}
	}
	return out
}

// Keys returns the keys of the Columns facet in order.
func (s State) Keys() []string {
	keys := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		keys[i] = c.Key
	}
	return keys
}

// HasFilter reports whether any filter key carries at least one condition.
func (s State) HasFilter() bool {
	for _, conds := range s.Filter {
		if len(conds) > 0 {
			return true
		}
	}
	return false
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
