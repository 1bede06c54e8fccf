// Package runner wires the image handler from configuration for use as a
// library or behind the bundled HTTP server.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tendant/simple-image-handler/internal/config"
	"github.com/tendant/simple-image-handler/internal/dbosruntime"
	"github.com/tendant/simple-image-handler/internal/dedupe"
	"github.com/tendant/simple-image-handler/internal/handlers"
	"github.com/tendant/simple-image-handler/internal/metrics"
	"github.com/tendant/simple-image-handler/internal/params"
	"github.com/tendant/simple-image-handler/internal/registry"
	"github.com/tendant/simple-image-handler/internal/workflows"
)

// Result is a rendered image.
type Result = workflows.Result

// Runner owns every component of the image handler
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	metrics  *metrics.Recorder
	render   *workflows.RenderWorkflow
	runner   *workflows.WorkflowRunner
	runtime  *dbosruntime.Runtime
	ledger   *dedupe.Tracker
}

// New creates a runner from a finalized configuration. When DBOS is
// configured its runtime is launched and warm renders are queued durably.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	r.registry = registry.New(registry.Builtin(ctx, cfg, logger), registry.SettingsFrom(cfg))

	opts := []workflows.RenderOption{
		workflows.WithKeyLength(cfg.Cache.KeyLength),
		workflows.WithCoalescing(cfg.Cache.Coalesce()),
		workflows.WithMetrics(r.metrics),
	}

	if cfg.Ledger.Enabled() {
		ledger, err := dedupe.Open(ctx, cfg.Ledger.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize render ledger: %w", err)
		}
		r.ledger = ledger
		opts = append(opts, workflows.WithLedger(ledger))
	}

	r.render = workflows.NewRenderWorkflow(r.registry, logger, opts...)

	if cfg.DBOS.Enabled() {
		rt, err := dbosruntime.NewRuntime(ctx, dbosruntime.FromConfig(cfg.DBOS), logger)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
		}
		r.runtime = rt
	}

	// Registers the warm workflow, so it must precede Launch
	r.runner = workflows.NewWorkflowRunner(r.render, r.registry, r.runtime, logger)

	if r.runtime != nil {
		if err := r.runtime.Launch(); err != nil {
			r.close()
			return nil, fmt.Errorf("failed to launch DBOS: %w", err)
		}
	}

	return r, nil
}

// Parse turns a query into a parameter set with the configured parser
func (r *Runner) Parse(values url.Values) (*params.Set, error) {
	parser, err := r.registry.Parameters()
	if err != nil {
		return nil, err
	}
	return parser.Parse(values), nil
}

// Render renders the image described by values
func (r *Runner) Render(ctx context.Context, values url.Values) (*Result, error) {
	ps, err := r.Parse(values)
	if err != nil {
		return nil, err
	}
	return r.render.Render(ctx, ps)
}

// RenderParams renders an already built parameter set
func (r *Runner) RenderParams(ctx context.Context, ps *params.Set) (*Result, error) {
	return r.render.Render(ctx, ps)
}

// Key returns the cache key values map to
func (r *Runner) Key(values url.Values) (string, error) {
	ps, err := r.Parse(values)
	if err != nil {
		return "", err
	}
	return r.render.Key(ps).String(), nil
}

// Handler returns the HTTP API
func (r *Runner) Handler() http.Handler {
	return handlers.NewRouter(handlers.Deps{
		Parsers:  r.registry,
		Renderer: r.render,
		Runner:   r.runner,
		Metrics:  r.metrics,
		Logger:   r.logger,
	})
}

// Shutdown releases components, waiting up to timeout for queued warms
func (r *Runner) Shutdown(timeout time.Duration) error {
	if r.runtime != nil {
		if err := r.runtime.Shutdown(timeout); err != nil {
			r.logger.Warn("DBOS shutdown failed", "error", err)
		}
	}
	return r.close()
}

func (r *Runner) close() error {
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			r.logger.Warn("ledger close failed", "error", err)
		}
	}
	return r.registry.Close()
}
