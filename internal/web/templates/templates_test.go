package templates

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestTablePartial_EscapesContent(t *testing.T) {
	html := render(t, TablePartial(TableViewParams{
		Key:        `x"y`,
		Columns:    []ColumnHeader{{Key: "name", Label: "<b>Name</b>", Sort: "desc"}},
		Rows:       []Row{{GroupHeader: "Type: A&B", Cells: []string{"<script>"}}},
		FilterInfo: "Filtered by: Name",
	}))

	for _, want := range []string{
		`<div id="table-x&#34;y">`,
		`<th data-key="name">&lt;b&gt;Name&lt;/b&gt; &#9660;</th>`,
		`<tr class="group"><td colspan="1">Type: A&amp;B</td></tr>`,
		`<td>&lt;script&gt;</td>`,
		`<div class="info">Filtered by: Name</div>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in %s", want, html)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("cell content was not escaped")
	}
}

func TestTablePartial_Empty(t *testing.T) {
	html := render(t, TablePartial(TableViewParams{Key: "t", Columns: []ColumnHeader{{Key: "a"}, {Key: "b"}}}))

	if !strings.Contains(html, `<td colspan="2" class="muted">No rows</td>`) {
		t.Errorf("expected empty placeholder, got %s", html)
	}
	if strings.Contains(html, `class="info"`) {
		t.Error("did not expect a filter indicator")
	}
}

func TestTableView_WrapsPage(t *testing.T) {
	html := render(t, TableView(TableViewParams{Key: "ns_customers", Group: "NS", Label: "Customers"}))

	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("expected a full document")
	}
	if !strings.Contains(html, `<title>NS Customers</title>`) {
		t.Errorf("unexpected title in %s", html)
	}
	if !strings.Contains(html, `hx-post="/api/tables/ns_customers/p13n"`) {
		t.Error("expected settings form to post to the dialog endpoint")
	}
}

func TestDialog(t *testing.T) {
	html := render(t, Dialog(DialogParams{
		TableKey: "ns_customers",
		Title:    "Table Settings",
		Source:   "settings-button",
		Panels: []DialogPanel{
			{Facet: "Sorter", Items: []DialogItem{
				{Key: "balance", Label: "Balance", Selected: true, Descending: true},
				{Key: "name", Label: "Name"},
			}},
			{Facet: "Filter", Items: []DialogItem{
				{Key: "name", Label: "Name", Selected: true, Conditions: []string{FormatCondition("Contains", []any{"ac"})}},
			}},
		},
	}))

	for _, want := range []string{
		`role="dialog" data-table="ns_customers" data-origin="settings-button"`,
		`<h3>Table Settings</h3>`,
		`<input type="checkbox" name="sorter" value="balance" checked> Balance</label> <span class="muted">descending</span>`,
		`<input type="checkbox" name="sorter" value="name"> Name</label></li>`,
		`<span class="muted">Contains ac</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in %s", want, html)
		}
	}
}

func TestFormatCondition(t *testing.T) {
	if got := FormatCondition("BT", []any{1, 10}); got != "BT 1, 10" {
		t.Errorf("unexpected %q", got)
	}
}

func TestErrorAlert(t *testing.T) {
	html := render(t, ErrorAlert("Table not found", "", "TABLE_NOT_FOUND"))
	if !strings.Contains(html, `data-code="TABLE_NOT_FOUND"><strong>Table not found</strong></div>`) {
		t.Errorf("unexpected alert %s", html)
	}

	html = render(t, ErrorAlert("Failed", "Try again", "INTERNAL"))
	if !strings.Contains(html, "<p>Try again</p>") {
		t.Errorf("expected action paragraph in %s", html)
	}
}

func TestDashboard(t *testing.T) {
	html := render(t, Dashboard([]TableGroup{{Name: "NS", Tables: []TableCardData{{Key: "ns_customers", Label: "Customers", Columns: 7}}}}))
	if !strings.Contains(html, "/table/ns_customers") {
		t.Errorf("expected a link to the table in %s", html)
	}
}

// failAfter accepts n writes, then fails every write.
type failAfter struct {
	n      int
	writes int
	err    error
}

func (f *failAfter) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > f.n {
		return 0, f.err
	}
	return len(p), nil
}

func TestRender_StopsAtFirstWriteError(t *testing.T) {
	errDisk := errors.New("disk full")
	w := &failAfter{n: 2, err: errDisk}

	err := TableView(TableViewParams{
		Key:     "ns_customers",
		Columns: []ColumnHeader{{Key: "name", Label: "Name"}},
		Rows:    []Row{{Cells: []string{"Acme"}}, {Cells: []string{"Globex"}}},
	}).Render(context.Background(), w)

	if !errors.Is(err, errDisk) {
		t.Fatalf("expected %v, got %v", errDisk, err)
	}
	if w.writes != 3 {
		t.Errorf("expected writes to stop after the failure, got %d attempts", w.writes)
	}
}
