package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders an error message fragment for HTMX responses.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := newWriter(w)
		hw.raw(`<div class="alert" role="alert" data-code="%s"><strong>`, attr(code))
		hw.text(message)
		hw.raw(`</strong>`)
		if action != "" {
			hw.raw(`<p>`)
			hw.text(action)
			hw.raw(`</p>`)
		}
		hw.raw(`</div>`)
		return hw.err
	})
}
