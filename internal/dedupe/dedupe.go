// Package dedupe keeps a ledger of renders per cache key. A count above one
// means the same variant was rendered more than once, which measures the
// duplicate work done by concurrent misses.
package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/tendant/simple-image-handler/internal/params"
)

// Tracker records renders in Postgres
type Tracker struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
}

// Open connects to dsn and prepares the ledger table
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Tracker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	t, err := NewTracker(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	t.owned = true
	return t, nil
}

// NewTracker creates a tracker on an existing pool
func NewTracker(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Tracker, error) {
	tracker := &Tracker{db: db, logger: logger.With("system", "ledger")}

	if err := tracker.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure render ledger table: %w", err)
	}

	return tracker, nil
}

// ensureTable creates the render_ledger table if it doesn't exist
func (t *Tracker) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS render_ledger (
			cache_key TEXT PRIMARY KEY,
			source TEXT,
			first_rendered_at TIMESTAMPTZ DEFAULT NOW(),
			last_rendered_at TIMESTAMPTZ DEFAULT NOW(),
			render_count INTEGER DEFAULT 1
		)
	`

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create render_ledger table: %w", err)
	}

	t.logger.Debug("render_ledger table ready")
	return nil
}

// Record counts one render of key and returns the total so far
func (t *Tracker) Record(ctx context.Context, key params.Key, source string) (int, error) {
	query := `
		INSERT INTO render_ledger (cache_key, source, first_rendered_at, last_rendered_at, render_count)
		VALUES ($1, $2, NOW(), NOW(), 1)
		ON CONFLICT (cache_key) DO UPDATE
		SET last_rendered_at = NOW(),
		    render_count = render_ledger.render_count + 1,
		    source = EXCLUDED.source
		RETURNING render_count
	`

	var count int
	err := t.db.QueryRowContext(ctx, query, key.String(), source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to record render: %w", err)
	}

	if count > 1 {
		t.logger.Info("duplicate render", "key", key, "src", source, "render_count", count)
	}
	return count, nil
}

// RenderCount returns how many times key was rendered, zero if never
func (t *Tracker) RenderCount(ctx context.Context, key params.Key) (int, error) {
	query := `SELECT render_count FROM render_ledger WHERE cache_key = $1`

	var count int
	err := t.db.QueryRowContext(ctx, query, key.String()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get render count: %w", err)
	}

	return count, nil
}

// Close closes the pool if the tracker opened it
func (t *Tracker) Close() error {
	if t.owned {
		return t.db.Close()
	}
	return nil
}
