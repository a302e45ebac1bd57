package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// TableCardData is one table on the dashboard.
type TableCardData struct {
	Key     string
	Label   string
	Columns int
	Ready   bool
}

// TableGroup is the tables of one data source.
type TableGroup struct {
	Name   string
	Tables []TableCardData
}

// Dashboard lists every table by group.
func Dashboard(groups []TableGroup) templ.Component {
	return Page("Tables", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := newWriter(w)
		if len(groups) == 0 {
			hw.raw(`<p class="muted">No tables registered.</p>`)
			return hw.err
		}
		for _, g := range groups {
			hw.raw(`<section><h2>`)
			hw.text(g.Name)
			hw.raw(`</h2>`)
			for _, t := range g.Tables {
				status := "loading"
				if t.Ready {
					status = "ready"
				}
				hw.raw(`<div class="card"><a href="/table/%s">`, attr(t.Key))
				hw.text(t.Label)
				hw.raw(`</a> <span class="muted">%d columns, %s</span></div>`, t.Columns, status)
			}
			hw.raw(`</section>`)
		}
		return hw.err
	}))
}
