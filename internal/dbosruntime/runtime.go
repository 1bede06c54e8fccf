// Package dbosruntime owns the DBOS context and queue backing durable warm
// renders.
package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
)

// ErrDatabaseURLRequired is returned when no DBOS database is configured
var ErrDatabaseURLRequired = errors.New("DBOS_SYSTEM_DATABASE_URL is required")

// Runtime holds the DBOS context, the warm queue, and a pool for status reads.
type Runtime struct {
	dbosContext dbos.DBOSContext
	queue       dbos.WorkflowQueue
	config      Config
	db          *sql.DB
	logger      *slog.Logger
}

// NewRuntime prepares DBOS without starting it. Workflows must be registered
// before Launch.
func NewRuntime(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrDatabaseURLRequired
	}

	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create DBOS context: %w", err)
	}

	// Worker concurrency bounds warm renders per process.
	queue := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName, dbos.WithWorkerConcurrency(cfg.Concurrency))

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open DBOS database: %w", err)
	}

	return &Runtime{
		dbosContext: dbosCtx,
		queue:       queue,
		config:      cfg,
		db:          db,
		logger:      logger.With("system", "dbos"),
	}, nil
}

// Launch starts DBOS recovery and the queue workers.
func (r *Runtime) Launch() error {
	if err := dbos.Launch(r.dbosContext); err != nil {
		return fmt.Errorf("launch DBOS: %w", err)
	}
	r.logger.Info("DBOS runtime launched",
		"app", r.config.AppName,
		"queue", r.config.QueueName,
		"concurrency", r.config.Concurrency)
	return nil
}

// Shutdown stops DBOS, giving in-flight warms up to timeout.
func (r *Runtime) Shutdown(timeout time.Duration) error {
	dbos.Shutdown(r.dbosContext, timeout)
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// QueueName is the queue warm workflows are enqueued on.
func (r *Runtime) QueueName() string {
	return r.queue.Name
}
