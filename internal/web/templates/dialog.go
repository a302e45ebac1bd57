package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// DialogItem is one key in a dialog panel.
type DialogItem struct {
	Key        string
	Label      string
	Selected   bool
	Descending bool
	Conditions []string
}

// DialogPanel is one facet of the personalization dialog.
type DialogPanel struct {
	Facet string
	Items []DialogItem
}

// DialogParams describes the personalization dialog.
type DialogParams struct {
	TableKey string
	Title    string
	Source   string
	Panels   []DialogPanel
}

// Dialog renders the personalization dialog fragment.
func Dialog(p DialogParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := newWriter(w)
		hw.raw(`<div class="card" role="dialog" data-table="%s" data-origin="%s"><h3>`,
			attr(p.TableKey), attr(p.Source))
		hw.text(p.Title)
		hw.raw(`</h3>`)
		for _, panel := range p.Panels {
			hw.raw(`<fieldset><legend>`)
			hw.text(panel.Facet)
			hw.raw(`</legend><ul>`)
			for _, item := range panel.Items {
				checked := ""
				if item.Selected {
					checked = " checked"
				}
				hw.raw(`<li><label><input type="checkbox" name="%s" value="%s"%s> `,
					attr(strings.ToLower(panel.Facet)), attr(item.Key), checked)
				hw.text(item.Label)
				hw.raw(`</label>`)
				if item.Selected && item.Descending {
					hw.raw(` <span class="muted">descending</span>`)
				}
				if len(item.Conditions) > 0 {
					hw.raw(` <span class="muted">`)
					hw.text(strings.Join(item.Conditions, ", "))
					hw.raw(`</span>`)
				}
				hw.raw(`</li>`)
			}
			hw.raw(`</ul></fieldset>`)
		}
		hw.raw(`</div>`)
		return hw.err
	})
}

// FormatCondition renders a filter condition for display.
func FormatCondition(operator string, values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return operator + " " + strings.Join(parts, ", ")
}
