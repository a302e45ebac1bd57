package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ColumnHeader is one visible column.
type ColumnHeader struct {
	Key   string
	Label string
	// Sort is "asc", "desc" or empty.
	Sort string
}

// Row is one rendered item.
type Row struct {
	GroupHeader string
	Cells       []string
}

// TableViewParams describes a rendered table.
type TableViewParams struct {
	Key        string
	Group      string
	Label      string
	Columns    []ColumnHeader
	Rows       []Row
	FilterInfo string
}

// TableView renders the full table page.
func TableView(p TableViewParams) templ.Component {
	return Page(p.Group+" "+p.Label, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := newWriter(w)
		hw.raw(`<h1>`)
		hw.text(p.Group + " / " + p.Label)
		hw.raw(`</h1><form method="post" action="/api/tables/%s/p13n" hx-post="/api/tables/%s/p13n" hx-target="#p13n-dialog"><input type="hidden" name="origin" value="settings-button"><button type="submit">Settings</button></form><div id="p13n-dialog"></div>`,
			attr(p.Key), attr(p.Key))
		hw.render(ctx, TablePartial(p))
		return hw.err
	}))
}

// TablePartial renders the table body, for HTMX swaps.
func TablePartial(p TableViewParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := newWriter(w)
		span := max(len(p.Columns), 1)

		hw.raw(`<div id="table-%s">`, attr(p.Key))
		if p.FilterInfo != "" {
			hw.raw(`<div class="info">`)
			hw.text(p.FilterInfo)
			hw.raw(`</div>`)
		}
		hw.raw(`<table><thead><tr>`)
		for _, c := range p.Columns {
			hw.raw(`<th data-key="%s">`, attr(c.Key))
			hw.text(c.Label)
			switch c.Sort {
			case "asc":
				hw.raw(` &#9650;`)
			case "desc":
				hw.raw(` &#9660;`)
			}
			hw.raw(`</th>`)
		}
		hw.raw(`</tr></thead><tbody>`)
		if len(p.Rows) == 0 {
			hw.raw(`<tr><td colspan="%d" class="muted">No rows</td></tr>`, span)
		}
		for _, r := range p.Rows {
			if r.GroupHeader != "" {
				hw.raw(`<tr class="group"><td colspan="%d">`, span)
				hw.text(r.GroupHeader)
				hw.raw(`</td></tr>`)
			}
			hw.raw(`<tr>`)
			for _, cell := range r.Cells {
				hw.raw(`<td>`)
				hw.text(cell)
				hw.raw(`</td>`)
			}
			hw.raw(`</tr>`)
		}
		hw.raw(`</tbody></table></div>`)
		return hw.err
	})
}
