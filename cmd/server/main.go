package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/p13ntable/internal/catalog"
	"github.com/JonMunkholm/p13ntable/internal/config"
	"github.com/JonMunkholm/p13ntable/internal/logging"
	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/p13n/pgstore"
	"github.com/JonMunkholm/p13ntable/internal/p13ntable"
	"github.com/JonMunkholm/p13ntable/internal/query"
	"github.com/JonMunkholm/p13ntable/internal/table"
	"github.com/JonMunkholm/p13ntable/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// initialLoadConcurrency bounds parallel first refreshes at startup.
const initialLoadConcurrency = 4

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"state_store", cfg.P13n.StateStore,
		"layouts_file", cfg.P13n.LayoutsFile,
		"require_api_key", cfg.Security.RequireAPIKey,
	)

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.UsesDatabase() {
		pool, err = connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	// Personalization state lives in memory unless the postgres store is selected.
	var store p13n.ModificationHandler = p13n.NewMemoryModification()
	if cfg.P13n.StateStore == config.StorePostgres {
		pg := pgstore.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare state store", "error", err)
			os.Exit(1)
		}
		store = pg
	}
	engine := p13n.NewEngine(p13n.WithModification(store), p13n.WithLogger(slog.Default()))

	if cfg.P13n.LayoutsFile != "" {
		n, err := catalog.LoadFile(cfg.P13n.LayoutsFile)
		if err != nil {
			slog.Error("failed to load layouts", "file", cfg.P13n.LayoutsFile, "error", err)
			os.Exit(1)
		}
		slog.Info("layouts loaded", "file", cfg.P13n.LayoutsFile, "count", n)
	}

	var entries []*web.Entry
	for _, layout := range catalog.All() {
		entries = append(entries, &web.Entry{
			Layout: layout,
			Table: p13ntable.New(catalog.NewWidget(layout), engine,
				p13ntable.WithTitle(cfg.P13n.DialogTitle),
				p13ntable.WithModification(store),
				p13ntable.WithLogger(slog.Default()),
			),
			Source: rowSource(layout, pool, cfg.P13n.RowLimit),
		})
	}
	slog.Info("tables registered",
		"count", catalog.Count(),
		"groups", len(catalog.Groups()),
	)

	// First render happens in the background; requests wait on each table's
	// initialization for up to P13N_INIT_TIMEOUT.
	loadCtx, cancelLoad := context.WithCancel(ctx)
	go loadTables(loadCtx, entries)

	server := web.NewServer(cfg, entries)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelLoad()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		for _, e := range entries {
			e.Table.Close()
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connect opens and verifies the connection pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// rowSource reads the layout's table from the database when one is
// connected, and serves its inline rows otherwise.
func rowSource(layout catalog.Layout, pool *pgxpool.Pool, limit int) table.RowSource {
	if pool == nil {
		return table.StaticSource(layout.Rows)
	}
	cols := make([]string, len(layout.Columns))
	for i, c := range layout.Columns {
		cols[i] = c.BindingPath()
	}
	return &query.Source{DB: pool, Table: layout.SourceTable(), Columns: cols, Limit: limit}
}

// loadTables performs each table's first refresh. Failures are logged and
// leave the table uninitialized until a later page view loads it.
func loadTables(ctx context.Context, entries []*web.Entry) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(initialLoadConcurrency)

	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := e.Table.Refresh(ctx, e.Source); err != nil {
				logging.ForTable(ctx, e.Layout.Key).Warn("initial load failed", "error", err)
			}
			return nil
		})
	}
	g.Wait()
	slog.Info("initial table load finished", "tables", len(entries))
}
