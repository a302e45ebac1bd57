package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/p13ntable/internal/catalog"
	"github.com/JonMunkholm/p13ntable/internal/logging"
	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/p13ntable"
	"github.com/JonMunkholm/p13ntable/internal/table"
	"github.com/JonMunkholm/p13ntable/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// maxStateSize bounds a PUT state body.
const maxStateSize = 1 << 20

// TableInfo is a table as listed by GET /api/tables.
type TableInfo struct {
	Key     string                     `json:"key"`
	Group   string                     `json:"group"`
	Label   string                     `json:"label"`
	Ready   bool                       `json:"ready"`
	Columns []p13ntable.ColumnMetadata `json:"columns,omitempty"`
}

// initContext bounds how long a request waits for a table's first render.
func (s *Server) initContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.P13n.InitTimeout)
}

// handleDashboard renders the list of tables by group.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var groups []templates.TableGroup
	for _, e := range s.entries() {
		card := templates.TableCardData{
			Key:     e.Layout.Key,
			Label:   e.Layout.Label,
			Columns: len(e.Layout.Columns),
			Ready:   e.Table.Ready(),
		}
		if n := len(groups); n > 0 && groups[n-1].Name == e.Layout.Group {
			groups[n-1].Tables = append(groups[n-1].Tables, card)
			continue
		}
		groups = append(groups, templates.TableGroup{Name: e.Layout.Group, Tables: []templates.TableCardData{card}})
	}

	templates.Dashboard(groups).Render(r.Context(), w)
}

// handleListTables returns every table with its column metadata.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	entries := s.entries()
	out := make([]TableInfo, len(entries))
	for i, e := range entries {
		out[i] = TableInfo{
			Key:     e.Layout.Key,
			Group:   e.Layout.Group,
			Label:   e.Layout.Label,
			Ready:   e.Table.Ready(),
			Columns: e.Table.Metadata(),
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleTableView reloads the table's rows and renders it in its
// personalized state.
func (s *Server) handleTableView(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(chi.URLParam(r, "tableKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := e.Table.Refresh(r.Context(), e.Source); err != nil {
		s.respondError(w, r, err)
		return
	}

	params := viewParams(e.Layout, e.Table.View())
	if isHTMX(r) {
		templates.TablePartial(params).Render(r.Context(), w)
		return
	}
	templates.TableView(params).Render(r.Context(), w)
}

// handleGetState returns the table's personalization state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(chi.URLParam(r, "tableKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := s.initContext(r)
	defer cancel()

	state, err := e.Table.RetrieveState(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

// handlePutState applies a state change and reloads rows so the source sees
// the new sort and filter directives.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")
	e, err := s.entry(tableKey)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var change p13n.State
	r.Body = http.MaxBytesReader(w, r.Body, maxStateSize)
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	ctx, cancel := s.initContext(r)
	defer cancel()

	state, err := e.Table.ApplyState(ctx, change)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := e.Table.Refresh(r.Context(), e.Source); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.ForTable(r.Context(), tableKey).Info("state applied",
		"columns", len(state.Columns),
		"sorters", len(state.Sorter),
		"groups", len(state.Groups),
		"filters", len(state.Filter),
	)
	writeJSON(w, r, http.StatusOK, state)
}

// handleResetState restores the table's initial state.
func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")
	e, err := s.entry(tableKey)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := s.initContext(r)
	defer cancel()

	state, err := e.Table.ResetState(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := e.Table.Refresh(r.Context(), e.Source); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.ForTable(r.Context(), tableKey).Info("state reset")
	writeJSON(w, r, http.StatusOK, state)
}

// handleOpenP13n returns the personalization dialog, as an HTML fragment for
// HTMX and as JSON otherwise. The origin form value names the element that
// opened it.
func (s *Server) handleOpenP13n(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(chi.URLParam(r, "tableKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := s.initContext(r)
	defer cancel()

	dialog, err := e.Table.OpenP13n(ctx, r.FormValue("origin"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) || strings.Contains(r.Header.Get("Accept"), "text/html") {
		templates.Dialog(dialogParams(e.Layout.Key, dialog)).Render(r.Context(), w)
		return
	}
	writeJSON(w, r, http.StatusOK, dialog)
}

// viewParams converts a table snapshot for rendering.
func viewParams(l catalog.Layout, v p13ntable.View) templates.TableViewParams {
	sortDir := make(map[string]string)
	for _, s := range v.Sorters {
		if s.Group {
			continue
		}
		if _, seen := sortDir[s.Path]; seen {
			continue
		}
		sortDir[s.Path] = "asc"
		if s.Descending {
			sortDir[s.Path] = "desc"
		}
	}

	p := templates.TableViewParams{
		Key:     l.Key,
		Group:   l.Group,
		Label:   l.Label,
		Columns: make([]templates.ColumnHeader, len(v.Columns)),
		Rows:    make([]templates.Row, len(v.Rows)),
	}
	if v.Filtered {
		p.FilterInfo = v.FilterInfo
	}
	for i, c := range v.Columns {
		h := templates.ColumnHeader{Key: c.Key, Label: c.Label}
		if spec, ok := l.Column(c.Key); ok {
			h.Sort = sortDir[spec.BindingPath()]
		}
		p.Columns[i] = h
	}
	for i, row := range v.Rows {
		cells := make([]string, len(row.Cells))
		for j, val := range row.Cells {
			cells[j] = table.FormatValue(val)
		}
		p.Rows[i] = templates.Row{GroupHeader: row.GroupHeader, Cells: cells}
	}
	return p
}

// dialogParams converts an engine dialog for rendering.
func dialogParams(tableKey string, d *p13n.Dialog) templates.DialogParams {
	p := templates.DialogParams{
		TableKey: tableKey,
		Title:    d.Title,
		Source:   d.Source,
		Panels:   make([]templates.DialogPanel, len(d.Panels)),
	}
	for i, panel := range d.Panels {
		items := make([]templates.DialogItem, len(panel.Items))
		for j, it := range panel.Items {
			conds := make([]string, len(it.Conditions))
			for k, c := range it.Conditions {
				conds[k] = templates.FormatCondition(c.Operator, c.Values)
			}
			items[j] = templates.DialogItem{
				Key:        it.Key,
				Label:      it.Label,
				Selected:   it.Selected,
				Descending: it.Descending,
				Conditions: conds,
			}
		}
		p.Panels[i] = templates.DialogPanel{Facet: string(panel.Facet), Items: items}
	}
	return p
}
