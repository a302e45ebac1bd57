package p13ntable

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWidget builds columns C1..C3 bound to name, city and revenue.
func newWidget(id string) *table.Table {
	w := table.New(id)
	w.AddColumn(table.NewColumn("C1", "Name"))
	w.AddColumn(table.NewColumn("C2", "City"))
	w.AddColumn(table.NewColumn("C3", "Revenue"))
	w.BindItems(table.NewItem(
		&table.Cell{Path: "name"},
		&table.Cell{Path: "city"},
		&table.Cell{Path: "revenue"},
	))
	return w
}

var rows = table.StaticSource{
	{"name": "Acme", "city": "Berlin", "revenue": 300.0},
	{"name": "Globex", "city": "Austin", "revenue": 120.0},
	{"name": "Initech", "city": "Berlin", "revenue": 75.0},
}

func newReadyTable(t *testing.T, opts ...Option) (*Table, *p13n.Engine) {
	t.Helper()
	engine := p13n.NewEngine()
	tbl := New(newWidget("products"), engine, opts...)
	require.NoError(t, tbl.Refresh(context.Background(), rows))
	require.True(t, tbl.Ready())
	return tbl, engine
}

func columnIDs(tbl *Table) []string {
	var out []string
	for _, c := range tbl.widget.Columns() {
		out = append(out, c.ID())
	}
	return out
}

func visibleIDs(tbl *Table) map[string]bool {
	out := make(map[string]bool)
	for _, c := range tbl.widget.Columns() {
		if c.Visible() {
			out[c.ID()] = true
		}
	}
	return out
}

// assertAligned checks that cell i of the template and of every item is
// bound to the path of column i.
func assertAligned(t *testing.T, tbl *Table) {
	t.Helper()
	paths := make(map[string]string)
	for _, m := range tbl.metadata {
		paths[m.Key] = m.Path
	}
	cols := tbl.widget.Columns()
	items := append([]*table.Item{tbl.widget.ItemBinding().Template()}, tbl.widget.Items()...)
	for n, it := range items {
		cells := it.Cells()
		require.Len(t, cells, len(cols), "item %d", n)
		for i, col := range cols {
			assert.Equal(t, paths[col.ID()], cells[i].Path, "item %d cell %d", n, i)
		}
	}
}

func TestInitialize_ExtractsMetadata(t *testing.T) {
	tbl, engine := newReadyTable(t)

	assert.Equal(t, []ColumnMetadata{
		{Key: "C1", Label: "Name", Path: "name"},
		{Key: "C2", Label: "City", Path: "city"},
		{Key: "C3", Label: "Revenue", Path: "revenue"},
	}, tbl.Metadata())
	assert.True(t, engine.IsRegistered(tbl))
}

func TestInitialize_EmptyResultUsesTemplate(t *testing.T) {
	engine := p13n.NewEngine()
	tbl := New(newWidget("empty"), engine)

	require.NoError(t, tbl.Refresh(context.Background(), table.StaticSource{}))

	require.True(t, tbl.Ready())
	assert.Len(t, tbl.Metadata(), 3)
}

func TestInitialize_UnboundCellFails(t *testing.T) {
	w := table.New("broken")
	w.AddColumn(table.NewColumn("C1", "Name"))
	w.AddColumn(table.NewColumn("C2", "City"))
	w.BindItems(table.NewItem(&table.Cell{Path: "name"}, &table.Cell{}))

	engine := p13n.NewEngine()
	tbl := New(w, engine)
	require.NoError(t, tbl.Refresh(context.Background(), rows))

	_, err := tbl.RetrieveState(context.Background())
	assert.ErrorIs(t, err, ErrCellNotBound)
	assert.False(t, engine.IsRegistered(tbl))
	assert.Nil(t, tbl.Metadata())
}

func TestMetadata_NilBeforeReady(t *testing.T) {
	tbl := New(newWidget("pending"), p13n.NewEngine())
	assert.False(t, tbl.Ready())
	assert.Nil(t, tbl.Metadata())
}

func TestApplyState_VisibilitySetEquality(t *testing.T) {
	tests := []struct {
		name    string
		columns []p13n.Item
		want    map[string]bool
	}{
		{"single", []p13n.Item{{Key: "C2"}}, map[string]bool{"C2": true}},
		{"all", []p13n.Item{{Key: "C3"}, {Key: "C1"}, {Key: "C2"}}, map[string]bool{"C1": true, "C2": true, "C3": true}},
		{"none", []p13n.Item{}, map[string]bool{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, _ := newReadyTable(t)

			_, err := tbl.ApplyState(context.Background(), p13n.State{Columns: tt.columns})
			require.NoError(t, err)

			assert.Equal(t, tt.want, visibleIDs(tbl))
			assert.Len(t, tbl.widget.Columns(), 3, "hidden columns stay in the table")
		})
	}
}

func TestApplyState_ReorderTwoColumns(t *testing.T) {
	engine := p13n.NewEngine()
	w := table.New("pair")
	w.AddColumn(table.NewColumn("C1", "One"))
	w.AddColumn(table.NewColumn("C2", "Two"))
	w.BindItems(table.NewItem(&table.Cell{Path: "one"}, &table.Cell{Path: "two"}))
	tbl := New(w, engine)
	require.NoError(t, tbl.Refresh(context.Background(), table.StaticSource{{"one": 1, "two": 2}}))

	_, err := tbl.ApplyState(context.Background(), p13n.State{Columns: []p13n.Item{{Key: "C2"}, {Key: "C1"}}})
	require.NoError(t, err)

	assert.Equal(t, []string{"C2", "C1"}, columnIDs(tbl))
	cells := w.Items()[0].Cells()
	assert.Equal(t, "two", cells[0].Path)
	assert.Equal(t, 2, cells[0].Value)
	assert.Equal(t, "one", cells[1].Path)
	assertAligned(t, tbl)
}

func TestApplyState_KeepsCellsAligned(t *testing.T) {
	tbl, _ := newReadyTable(t)
	ctx := context.Background()

	for _, order := range [][]string{
		{"C3", "C1", "C2"},
		{"C2", "C3"},
		{"C1"},
		{"C3", "C2", "C1"},
	} {
		items := make([]p13n.Item, len(order))
		for i, k := range order {
			items[i] = p13n.Item{Key: k}
		}
		_, err := tbl.ApplyState(ctx, p13n.State{Columns: items})
		require.NoError(t, err)

		assert.Equal(t, order, columnIDs(tbl)[:len(order)])
		assertAligned(t, tbl)
	}

	// Items materialized after the moves come from the moved template.
	require.NoError(t, tbl.Refresh(ctx, rows))
	assertAligned(t, tbl)
}

func TestApplyState_SortThenGroupOrder(t *testing.T) {
	tbl, _ := newReadyTable(t)

	_, err := tbl.ApplyState(context.Background(), p13n.State{
		Sorter: []p13n.SortItem{{Key: "C1"}},
		Groups: []p13n.SortItem{{Key: "C2", Descending: true}},
	})
	require.NoError(t, err)

	assert.Equal(t, []table.Sorter{
		{Path: "name"},
		{Path: "city", Descending: true, Group: true},
	}, tbl.widget.ItemBinding().Sorters())
}

func TestApplyState_Filters(t *testing.T) {
	tbl, _ := newReadyTable(t)

	_, err := tbl.ApplyState(context.Background(), p13n.State{
		Filter: map[string][]p13n.Condition{
			"C2": {{Operator: "Contains", Values: []any{"berl"}}},
			"C1": {{Operator: "EQ", Values: []any{"acme", "ignored"}}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []table.Filter{
		{Path: "name", Operator: table.OpContains, Value: "acme"},
		{Path: "city", Operator: table.OpContains, Value: "berl"},
	}, tbl.widget.ItemBinding().Filters())
	info := tbl.widget.FilterInfo()
	assert.True(t, info.Visible())
	assert.Equal(t, "Filtered by: Name, City", info.Text())
	assert.Equal(t, 1, tbl.widget.ItemBinding().Length())

	_, err = tbl.ApplyState(context.Background(), p13n.State{Filter: map[string][]p13n.Condition{}})
	require.NoError(t, err)
	assert.False(t, tbl.widget.FilterInfo().Visible())
	assert.Equal(t, 3, tbl.widget.ItemBinding().Length())
}

func TestReconcile_Idempotent(t *testing.T) {
	tbl, _ := newReadyTable(t)
	s := p13n.State{
		Columns: []p13n.Item{{Key: "C3"}, {Key: "C1"}},
		Sorter:  []p13n.SortItem{{Key: "C3", Descending: true}},
		Groups:  []p13n.SortItem{{Key: "C2"}},
		Filter:  map[string][]p13n.Condition{"C2": {{Operator: "Contains", Values: []any{"b"}}}},
	}

	require.NoError(t, tbl.Reconcile(s))
	before := tbl.View()
	cols := columnIDs(tbl)

	require.NoError(t, tbl.Reconcile(s))
	assert.Equal(t, cols, columnIDs(tbl))
	assert.Equal(t, before, tbl.View())
	assertAligned(t, tbl)
}

func TestReconcile_UnresolvableFilterKey(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tbl, _ := newReadyTable(t, WithLogger(logger))

	// A filter from an earlier pass narrows the items.
	require.NoError(t, tbl.Reconcile(p13n.State{
		Filter: map[string][]p13n.Condition{"C2": {{Values: []any{"Berlin"}}}},
	}))
	require.True(t, tbl.widget.FilterInfo().Visible())
	require.Equal(t, 2, tbl.widget.ItemBinding().Length())

	var err error
	assert.NotPanics(t, func() {
		err = tbl.Reconcile(p13n.State{
			Columns: []p13n.Item{{Key: "C2"}, {Key: "C1"}},
			Sorter:  []p13n.SortItem{{Key: "C3"}},
			Filter: map[string][]p13n.Condition{
				"C1":    {{Values: []any{"x"}}},
				"ghost": {{Values: []any{"y"}}},
			},
		})
	})
	require.NoError(t, err)

	assert.False(t, tbl.widget.FilterInfo().Visible())
	assert.Equal(t, []string{"C2", "C1", "C3"}, columnIDs(tbl))
	assert.Equal(t, map[string]bool{"C1": true, "C2": true}, visibleIDs(tbl))
	assert.Equal(t, []table.Sorter{{Path: "revenue"}}, tbl.widget.ItemBinding().Sorters())
	assert.Empty(t, tbl.widget.ItemBinding().Filters(), "earlier filter cleared")
	assert.Equal(t, len(rows), tbl.widget.ItemBinding().Length())
	assert.False(t, tbl.View().Filtered)
	assert.Contains(t, logs.String(), "p13n filters not applied")
}

func TestReconcile_ConditionWithoutValue(t *testing.T) {
	tbl, _ := newReadyTable(t)
	require.NoError(t, tbl.Reconcile(p13n.State{
		Filter: map[string][]p13n.Condition{"C2": {{Values: []any{"Berlin"}}}},
	}))

	err := tbl.Reconcile(p13n.State{Filter: map[string][]p13n.Condition{"C1": {{Operator: "Contains"}}}})
	require.NoError(t, err)
	assert.False(t, tbl.widget.FilterInfo().Visible())
	assert.Empty(t, tbl.widget.ItemBinding().Filters())
	assert.Equal(t, len(rows), tbl.widget.ItemBinding().Length())
}

func TestReconcile_UnresolvableSortKey(t *testing.T) {
	tbl, _ := newReadyTable(t)

	err := tbl.Reconcile(p13n.State{
		Columns: []p13n.Item{{Key: "C3"}},
		Groups:  []p13n.SortItem{{Key: "ghost"}},
	})
	require.ErrorIs(t, err, p13n.ErrUnknownKey)
	assert.Contains(t, err.Error(), `group "ghost"`)

	assert.Equal(t, map[string]bool{"C3": true}, visibleIDs(tbl), "visibility applied before the failure")
	assert.Empty(t, tbl.widget.ItemBinding().Sorters())
}

func TestReconcile_UnknownColumnKeysIgnored(t *testing.T) {
	tbl, _ := newReadyTable(t)

	require.NoError(t, tbl.Reconcile(p13n.State{Columns: []p13n.Item{{Key: "ghost"}, {Key: "C3"}}}))

	assert.Equal(t, map[string]bool{"C3": true}, visibleIDs(tbl))
	assert.Equal(t, []string{"C1", "C3", "C2"}, columnIDs(tbl))
	assertAligned(t, tbl)
}

type result struct {
	state p13n.State
	err   error
}

func TestApplyState_WaitsForFirstRender(t *testing.T) {
	engine := p13n.NewEngine()
	tbl := New(newWidget("late"), engine)
	ctx := context.Background()

	applied := make(chan result, 1)
	go func() {
		s, err := tbl.ApplyState(ctx, p13n.State{Columns: []p13n.Item{{Key: "C2"}}})
		applied <- result{s, err}
	}()
	retrieved := make(chan result, 1)
	go func() {
		s, err := tbl.RetrieveState(ctx)
		retrieved <- result{s, err}
	}()

	select {
	case <-applied:
		t.Fatal("ApplyState returned before the first render")
	case <-retrieved:
		t.Fatal("RetrieveState returned before the first render")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, engine.IsRegistered(tbl))

	require.NoError(t, tbl.Refresh(ctx, rows))

	for _, ch := range []chan result{applied, retrieved} {
		select {
		case r := <-ch:
			require.NoError(t, r.err)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released after the first render")
		}
	}

	s, err := tbl.RetrieveState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []p13n.Item{{Key: "C2"}}, s.Columns)
	assert.Equal(t, map[string]bool{"C2": true}, visibleIDs(tbl))
}

func TestApplyState_ContextEndsWait(t *testing.T) {
	tbl := New(newWidget("never"), p13n.NewEngine())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tbl.ApplyState(ctx, p13n.State{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = tbl.OpenP13n(ctx, "button")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStateChange_OtherTablesIgnored(t *testing.T) {
	engine := p13n.NewEngine()
	a := New(newWidget("same"), engine)
	b := New(newWidget("same"), engine)
	ctx := context.Background()
	require.NoError(t, a.Refresh(ctx, rows))
	require.NoError(t, b.Refresh(ctx, rows))

	_, err := a.ApplyState(ctx, p13n.State{Columns: []p13n.Item{{Key: "C3"}}})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"C3": true}, visibleIDs(a))
	assert.Equal(t, map[string]bool{"C1": true, "C2": true, "C3": true}, visibleIDs(b))
}

func TestOpenP13n(t *testing.T) {
	tbl, _ := newReadyTable(t, WithTitle("Columns and Sorting"))

	d, err := tbl.OpenP13n(context.Background(), "settings-button")
	require.NoError(t, err)

	assert.Equal(t, "products", d.Control)
	assert.Equal(t, "Columns and Sorting", d.Title)
	assert.Equal(t, "settings-button", d.Source)
	require.Len(t, d.Panels, 4)
	for i, facet := range []p13n.Facet{p13n.FacetColumns, p13n.FacetSorter, p13n.FacetGroups, p13n.FacetFilter} {
		assert.Equal(t, facet, d.Panels[i].Facet)
	}
}

func TestOpenP13n_DefaultTitle(t *testing.T) {
	tbl, _ := newReadyTable(t)

	d, err := tbl.OpenP13n(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, d.Title)
}

func TestResetState(t *testing.T) {
	tbl, _ := newReadyTable(t)
	ctx := context.Background()

	_, err := tbl.ApplyState(ctx, p13n.State{
		Columns: []p13n.Item{{Key: "C3"}},
		Sorter:  []p13n.SortItem{{Key: "C1", Descending: true}},
	})
	require.NoError(t, err)

	s, err := tbl.ResetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []p13n.Item{{Key: "C1"}, {Key: "C2"}, {Key: "C3"}}, s.Columns)
	assert.Len(t, visibleIDs(tbl), 3)
	assert.Empty(t, tbl.widget.ItemBinding().Sorters())
}

func TestClose_Deregisters(t *testing.T) {
	tbl, engine := newReadyTable(t)

	tbl.Close()
	assert.False(t, engine.IsRegistered(tbl))

	_, err := tbl.RetrieveState(context.Background())
	assert.ErrorIs(t, err, p13n.ErrNotRegistered)
}

func TestClose_BeforeFirstRender(t *testing.T) {
	engine := p13n.NewEngine()
	tbl := New(newWidget("closed"), engine)
	ctx := context.Background()

	waiting := make(chan error, 1)
	go func() {
		_, err := tbl.RetrieveState(ctx)
		waiting <- err
	}()

	tbl.Close()

	select {
	case err := <-waiting:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Close")
	}

	require.NoError(t, tbl.Refresh(ctx, rows))
	assert.False(t, engine.IsRegistered(tbl))
	assert.False(t, tbl.Ready())
	assert.Nil(t, tbl.Metadata())

	_, err := tbl.ApplyState(ctx, p13n.State{Columns: []p13n.Item{{Key: "C1"}}})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, visibleIDs(tbl), 3)
}

func TestRestore_StoredState(t *testing.T) {
	store := p13n.NewMemoryModification()
	require.NoError(t, store.Save(context.Background(), "products", p13n.State{
		Columns: []p13n.Item{{Key: "C2"}, {Key: "C1"}},
		Sorter:  []p13n.SortItem{{Key: "C1", Descending: true}},
		Groups:  []p13n.SortItem{},
		Filter:  map[string][]p13n.Condition{},
	}))

	engine := p13n.NewEngine()
	tbl := New(newWidget("products"), engine, WithModification(store))
	require.NoError(t, tbl.Refresh(context.Background(), rows))

	assert.Equal(t, []string{"C2", "C1", "C3"}, columnIDs(tbl))
	assert.Equal(t, map[string]bool{"C1": true, "C2": true}, visibleIDs(tbl))
	assert.Equal(t, []table.Sorter{{Path: "name", Descending: true}}, tbl.widget.ItemBinding().Sorters())
	assertAligned(t, tbl)
}

func TestView_GroupHeaders(t *testing.T) {
	tbl, _ := newReadyTable(t)

	_, err := tbl.ApplyState(context.Background(), p13n.State{
		Columns: []p13n.Item{{Key: "C1"}, {Key: "C3"}},
		Sorter:  []p13n.SortItem{{Key: "C1"}},
		Groups:  []p13n.SortItem{{Key: "C2"}},
	})
	require.NoError(t, err)

	v := tbl.View()
	assert.Equal(t, []ViewColumn{{Key: "C1", Label: "Name"}, {Key: "C3", Label: "Revenue"}}, v.Columns)
	require.Len(t, v.Rows, 3)
	assert.Equal(t, "Austin", v.Rows[0].GroupHeader)
	assert.Equal(t, []any{"Globex", 120.0}, v.Rows[0].Cells)
	assert.Equal(t, "Berlin", v.Rows[1].GroupHeader)
	assert.Equal(t, []any{"Acme", 300.0}, v.Rows[1].Cells)
	assert.Empty(t, v.Rows[2].GroupHeader)
	assert.False(t, v.Filtered)
}

func TestSourcesReflectBinding(t *testing.T) {
	tbl, _ := newReadyTable(t)

	tbl.widget.ItemBinding().Sort([]table.Sorter{{Path: "city", Descending: true, Group: true}, {Path: "revenue"}})
	tbl.widget.ItemBinding().Filter([]table.Filter{{Path: "name", Operator: table.OpContains, Value: "a"}, {Path: "unbound", Value: "x"}})

	assert.Equal(t, []p13n.SortItem{{Key: "C3"}}, tbl.SortState(false))
	assert.Equal(t, []p13n.SortItem{{Key: "C2", Descending: true}}, tbl.SortState(true))
	assert.Equal(t, map[string][]p13n.Condition{"C1": {{Operator: "Contains", Values: []any{"a"}}}}, tbl.FilterState())
	assert.Nil(t, tbl.SelectionItems("rows"))
	assert.Len(t, tbl.SelectionItems(ColumnsAggregation), 3)
}
