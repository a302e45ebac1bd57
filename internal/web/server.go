// Package web provides the HTTP server for personalizable tables.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/JonMunkholm/p13ntable/internal/catalog"
	"github.com/JonMunkholm/p13ntable/internal/config"
	"github.com/JonMunkholm/p13ntable/internal/p13ntable"
	"github.com/JonMunkholm/p13ntable/internal/table"
	"github.com/JonMunkholm/p13ntable/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Entry is one personalizable table served by the server.
type Entry struct {
	Layout catalog.Layout
	Table  *p13ntable.Table
	Source table.RowSource
}

// Server is the HTTP server.
type Server struct {
	cfg    *config.Config
	tables map[string]*Entry
	router *chi.Mux
	server *http.Server
}

// NewServer creates a server for entries, keyed by layout key.
func NewServer(cfg *config.Config, entries []*Entry) *Server {
	s := &Server{
		cfg:    cfg,
		tables: make(map[string]*Entry, len(entries)),
		router: chi.NewRouter(),
	}
	for _, e := range entries {
		s.tables[e.Layout.Key] = e
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/table/{tableKey}", s.handleTableView)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		if s.cfg.Security.RateLimit > 0 {
			r.Use(middleware.NewRateLimiter(s.cfg.Security.RateLimit, s.cfg.Security.RateWindow).Middleware)
		}
		r.Get("/tables", s.handleListTables)

		r.Route("/tables/{tableKey}", func(r chi.Router) {
			r.Post("/p13n", s.handleOpenP13n)

			r.Group(func(r chi.Router) {
				r.Use(middleware.APIKeyAuth(&s.cfg.Security))
				r.Get("/state", s.handleGetState)
				r.Put("/state", s.handlePutState)
				r.Post("/state/reset", s.handleResetState)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "tables", len(s.tables))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// entry returns the table for key.
func (s *Server) entry(key string) (*Entry, error) {
	e, ok := s.tables[key]
	if !ok {
		return nil, errTableNotFound
	}
	return e, nil
}

// entries returns every table sorted by group then key.
func (s *Server) entries() []*Entry {
	out := make([]*Entry, 0, len(s.tables))
	for _, e := range s.tables {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Layout.Group != out[j].Layout.Group {
			return out[i].Layout.Group < out[j].Layout.Group
		}
		return out[i].Layout.Key < out[j].Layout.Key
	})
	return out
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
