// Package pgstore stores personalization state in PostgreSQL.
//
// Each control's state is kept as one JSONB document keyed by control ID.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS p13n_state (
	control_id TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	loadSQL  = `SELECT state FROM p13n_state WHERE control_id = $1`
	saveSQL  = `INSERT INTO p13n_state (control_id, state, updated_at) VALUES ($1, $2, now())
ON CONFLICT (control_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`
	resetSQL = `DELETE FROM p13n_state WHERE control_id = $1`
)

// Handler is a p13n.ModificationHandler backed by PostgreSQL.
type Handler struct {
	db DBTX
}

var _ p13n.ModificationHandler = (*Handler)(nil)

// New creates a handler on db.
func New(db DBTX) *Handler {
	return &Handler{db: db}
}

// EnsureSchema creates the state table if it does not exist.
func (h *Handler) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create p13n_state: %w", err)
	}
	return nil
}

// Load returns the stored state for controlID.
func (h *Handler) Load(ctx context.Context, controlID string) (p13n.State, bool, error) {
	var raw []byte
	err := h.db.QueryRow(ctx, loadSQL, controlID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return p13n.State{}, false, nil
	}
	if err != nil {
		return p13n.State{}, false, fmt.Errorf("load state: %w", err)
	}

	var s p13n.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return p13n.State{}, false, fmt.Errorf("decode state: %w", err)
	}
	return s, true, nil
}

// Save upserts s for controlID.
func (h *Handler) Save(ctx context.Context, controlID string, s p13n.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := h.db.Exec(ctx, saveSQL, controlID, raw); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Reset deletes the state stored for controlID.
func (h *Handler) Reset(ctx context.Context, controlID string) error {
	if _, err := h.db.Exec(ctx, resetSQL, controlID); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}
