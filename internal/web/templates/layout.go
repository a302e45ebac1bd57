// Package templates holds the templ components rendered by the web server.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const styles = `
body{font-family:system-ui,sans-serif;margin:0;color:#1f2937;background:#f9fafb}
header{background:#111827;color:#fff;padding:12px 24px}
header a{color:#fff;text-decoration:none;font-weight:600}
main{padding:24px}
table{border-collapse:collapse;width:100%;background:#fff}
th,td{border:1px solid #e5e7eb;padding:6px 10px;text-align:left;font-size:14px}
th{background:#f3f4f6}
tr.group td{background:#eef2ff;font-weight:600}
.card{background:#fff;border:1px solid #e5e7eb;border-radius:6px;padding:12px;margin:8px 0}
.info{background:#fef3c7;border:1px solid #fcd34d;padding:6px 10px;margin:8px 0;font-size:14px}
.alert{background:#fee2e2;border:1px solid #fca5a5;padding:10px;border-radius:6px}
.muted{color:#6b7280;font-size:13px}
`

// writer renders markup to w and keeps the first write error. Writes after
// a failure are dropped.
type writer struct {
	w   io.Writer
	err error
}

func newWriter(w io.Writer) *writer { return &writer{w: w} }

// text writes escaped text.
func (hw *writer) text(s string) {
	if hw.err == nil {
		_, hw.err = io.WriteString(hw.w, templ.EscapeString(s))
	}
}

// raw writes markup verbatim.
func (hw *writer) raw(format string, args ...any) {
	if hw.err == nil {
		_, hw.err = fmt.Fprintf(hw.w, format, args...)
	}
}

// render renders c unless an earlier write failed.
func (hw *writer) render(ctx context.Context, c templ.Component) {
	if hw.err == nil {
		hw.err = c.Render(ctx, hw.w)
	}
}

// attr escapes a value for use inside a double-quoted attribute.
func attr(s string) string {
	return templ.EscapeString(s)
}

// Page wraps body in the document shell.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := newWriter(w)
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		hw.text(title)
		hw.raw(`</title><style>%s</style></head><body><header><a href="/">Tables</a></header><main>`, styles)
		hw.render(ctx, body)
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}
