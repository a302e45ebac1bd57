package p13n

import "fmt"

// Controller personalizes one facet of a control. Every facet shares the same
// contract: read the control's current sub-state, merge a change into a
// state, and describe the facet for the personalization dialog.
type Controller interface {
	Facet() Facet

	// CurrentState writes the facet's sub-state as found on the control into s.
	CurrentState(s *State)

	// Update merges the facet's sub-state from change into s. It reports
	// whether change carried the facet at all.
	Update(s *State, change State, helper *MetadataHelper) (bool, error)

	// Panel describes the facet for the dialog, given the current state.
	Panel(s State, helper *MetadataHelper) Panel
}

// SelectionItem is one entry of a control aggregation with its visibility.
type SelectionItem struct {
	Key     string
	Visible bool
}

// SelectionSource exposes a control aggregation for selection.
type SelectionSource interface {
	SelectionItems(aggregation string) []SelectionItem
}

// SortSource exposes a control's initial sort (group=false) or grouping
// (group=true) directives as keys.
type SortSource interface {
	SortState(group bool) []SortItem
}

// FilterSource exposes a control's initial filter conditions by key.
type FilterSource interface {
	FilterState() map[string][]Condition
}

// SelectionController personalizes which entries of an aggregation are
// shown and in which order.
type SelectionController struct {
	Control           SelectionSource
	TargetAggregation string
}

func (c *SelectionController) Facet() Facet { return FacetColumns }

func (c *SelectionController) CurrentState(s *State) {
	s.Columns = []Item{}
	if c.Control == nil {
		return
	}
	for _, it := range c.Control.SelectionItems(c.TargetAggregation) {
		if it.Visible {
			s.Columns = append(s.Columns, Item{Key: it.Key})
		}
	}
}

// Update keeps known keys in the given order. Unknown and duplicate keys are dropped.
func (c *SelectionController) Update(s *State, change State, helper *MetadataHelper) (bool, error) {
	if change.Columns == nil {
		return false, nil
	}
	seen := make(map[string]bool, len(change.Columns))
	cols := make([]Item, 0, len(change.Columns))
	for _, it := range change.Columns {
		if seen[it.Key] {
			continue
		}
		if _, ok := helper.Property(it.Key); !ok {
			continue
		}
		seen[it.Key] = true
		cols = append(cols, Item{Key: it.Key})
	}
	s.Columns = cols
	return true, nil
}

func (c *SelectionController) Panel(s State, helper *MetadataHelper) Panel {
	p := Panel{Facet: FacetColumns}
	selected := make(map[string]bool, len(s.Columns))
	for _, it := range s.Columns {
		prop, ok := helper.Property(it.Key)
		if !ok {
			continue
		}
		selected[it.Key] = true
		p.Items = append(p.Items, PanelItem{Key: prop.Key, Label: prop.Label, Selected: true})
	}
	for _, prop := range helper.Properties() {
		if !selected[prop.Key] {
			p.Items = append(p.Items, PanelItem{Key: prop.Key, Label: prop.Label})
		}
	}
	return p
}

// SortController personalizes the sort directives of a control's data.
type SortController struct {
	Control SortSource
}

func (c *SortController) Facet() Facet { return FacetSorter }

func (c *SortController) CurrentState(s *State) {
	s.Sorter = []SortItem{}
	if c.Control != nil {
		s.Sorter = append(s.Sorter, c.Control.SortState(false)...)
	}
}

func (c *SortController) Update(s *State, change State, helper *MetadataHelper) (bool, error) {
	if change.Sorter == nil {
		return false, nil
	}
	items, err := checkSortItems(change.Sorter, helper)
	if err != nil {
		return true, fmt.Errorf("sorter: %w", err)
	}
	s.Sorter = items
	return true, nil
}

func (c *SortController) Panel(s State, helper *MetadataHelper) Panel {
	return sortPanel(FacetSorter, s.Sorter, helper)
}

// GroupController personalizes the grouping directives of a control's data.
type GroupController struct {
	Control SortSource
}

func (c *GroupController) Facet() Facet { return FacetGroups }

func (c *GroupController) CurrentState(s *State) {
	s.Groups = []SortItem{}
	if c.Control != nil {
		s.Groups = append(s.Groups, c.Control.SortState(true)...)
	}
}

func (c *GroupController) Update(s *State, change State, helper *MetadataHelper) (bool, error) {
	if change.Groups == nil {
		return false, nil
	}
	items, err := checkSortItems(change.Groups, helper)
	if err != nil {
		return true, fmt.Errorf("groups: %w", err)
	}
	s.Groups = items
	return true, nil
}

func (c *GroupController) Panel(s State, helper *MetadataHelper) Panel {
	return sortPanel(FacetGroups, s.Groups, helper)
}

// FilterController personalizes the filter conditions of a control's data.
type FilterController struct {
	Control FilterSource
}

func (c *FilterController) Facet() Facet { return FacetFilter }

func (c *FilterController) CurrentState(s *State) {
	s.Filter = map[string][]Condition{}
	if c.Control == nil {
		return
	}
	for k, conds := range c.Control.FilterState() {
		s.Filter[k] = append([]Condition(nil), conds...)
	}
}

// Update replaces the filter conditions. Keys without conditions are dropped,
// conditions without an operator default to Contains and conditions without
// a value are rejected.
func (c *FilterController) Update(s *State, change State, helper *MetadataHelper) (bool, error) {
	if change.Filter == nil {
		return false, nil
	}
	filter := make(map[string][]Condition, len(change.Filter))
	for key, conds := range change.Filter {
		if _, ok := helper.Property(key); !ok {
			return true, fmt.Errorf("filter: %w: %q", ErrUnknownKey, key)
		}
		if len(conds) == 0 {
			continue
		}
		out := make([]Condition, len(conds))
		for i, cond := range conds {
			if len(cond.Values) == 0 {
				return true, fmt.Errorf("filter %q: %w: no value", key, ErrInvalidCondition)
			}
			if cond.Operator == "" {
				cond.Operator = "Contains"
			}
			out[i] = Condition{Operator: cond.Operator, Values: cloneSlice(cond.Values)}
		}
		filter[key] = out
	}
	s.Filter = filter
	return true, nil
}

func (c *FilterController) Panel(s State, helper *MetadataHelper) Panel {
	p := Panel{Facet: FacetFilter}
	for _, prop := range helper.Properties() {
		conds := s.Filter[prop.Key]
		p.Items = append(p.Items, PanelItem{
			Key:        prop.Key,
			Label:      prop.Label,
			Selected:   len(conds) > 0,
			Conditions: conds,
		})
	}
	return p
}

func checkSortItems(items []SortItem, helper *MetadataHelper) ([]SortItem, error) {
	seen := make(map[string]bool, len(items))
	out := make([]SortItem, 0, len(items))
	for _, it := range items {
		if _, ok := helper.Property(it.Key); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, it.Key)
		}
		if seen[it.Key] {
			continue
		}
		seen[it.Key] = true
		out = append(out, it)
	}
	return out, nil
}

func sortPanel(facet Facet, items []SortItem, helper *MetadataHelper) Panel {
	p := Panel{Facet: facet}
	selected := make(map[string]bool, len(items))
	for _, it := range items {
		prop, ok := helper.Property(it.Key)
		if !ok {
			continue
		}
		selected[it.Key] = true
		p.Items = append(p.Items, PanelItem{Key: prop.Key, Label: prop.Label, Selected: true, Descending: it.Descending})
	}
	for _, prop := range helper.Properties() {
		if !selected[prop.Key] {
			p.Items = append(p.Items, PanelItem{Key: prop.Key, Label: prop.Label})
		}
	}
	return p
}
