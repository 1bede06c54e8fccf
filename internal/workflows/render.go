package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-image-handler/internal/metrics"
	"github.com/tendant/simple-image-handler/internal/params"
	"github.com/tendant/simple-image-handler/internal/storage"
	"github.com/tendant/simple-image-handler/internal/tool"
)

// Components resolves the collaborators of a render. *registry.Registry
// implements it.
type Components interface {
	Provider() (storage.Provider, error)
	Tool() (tool.Tool, error)
	Store() (storage.Store, error)
}

// Ledger counts renders per cache key.
type Ledger interface {
	Record(ctx context.Context, key params.Key, source string) (int, error)
}

// Result is the outcome of a render.
type Result struct {
	RunID       string
	Key         params.Key
	Data        []byte
	ContentType string
	Hit         bool
}

// RenderWorkflow serves a parameter set from the store, or fetches, transforms
// and persists it on a miss.
type RenderWorkflow struct {
	components Components
	logger     *slog.Logger
	metrics    *metrics.Recorder
	ledger     Ledger
	keyLength  int
	coalesce   bool
	group      singleflight.Group
}

// RenderOption configures a RenderWorkflow.
type RenderOption func(*RenderWorkflow)

// WithKeyLength truncates cache keys to n hex characters.
func WithKeyLength(n int) RenderOption {
	return func(w *RenderWorkflow) { w.keyLength = n }
}

// WithCoalescing makes concurrent misses for the same key share one render.
func WithCoalescing(enabled bool) RenderOption {
	return func(w *RenderWorkflow) { w.coalesce = enabled }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Recorder) RenderOption {
	return func(w *RenderWorkflow) { w.metrics = m }
}

// WithLedger records every miss render on l.
func WithLedger(l Ledger) RenderOption {
	return func(w *RenderWorkflow) { w.ledger = l }
}

// NewRenderWorkflow creates the workflow.
func NewRenderWorkflow(components Components, logger *slog.Logger, opts ...RenderOption) *RenderWorkflow {
	w := &RenderWorkflow{
		components: components,
		logger:     logger.With("system", "render"),
		keyLength:  params.DefaultKeyLength,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow name
func (w *RenderWorkflow) Name() string {
	return "RenderWorkflow"
}

// Key derives the cache key for ps.
func (w *RenderWorkflow) Key(ps *params.Set) params.Key {
	return ps.DeriveKeyN(w.keyLength)
}

// Render returns the bytes for ps. Store failures never fail the render;
// provider, tool and filter failures do, and leave the store untouched.
func (w *RenderWorkflow) Render(ctx context.Context, ps *params.Set) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := w.logger.With("run_id", runID)

	res, err := w.render(ctx, ps, runID, logger)
	w.metrics.Observe(metrics.StageTotal, start)
	if err != nil {
		w.metrics.Request(metrics.ResultError)
		logger.Warn("render failed", "src", ps.Source(), "error", err)
		return nil, err
	}

	if res.Hit {
		w.metrics.Request(metrics.ResultHit)
	} else {
		w.metrics.Request(metrics.ResultMiss)
	}
	return res, nil
}

func (w *RenderWorkflow) render(ctx context.Context, ps *params.Set, runID string, logger *slog.Logger) (*Result, error) {
	if ps.Source() == "" {
		return nil, ErrMissingSource
	}

	key := w.Key(ps)
	logger = logger.With("key", key)

	store, err := w.components.Store()
	if err != nil {
		return nil, err
	}

	if data, ok := w.lookup(ctx, store, key, logger); ok {
		logger.Debug("cache hit", "bytes", len(data))
		return &Result{
			RunID:       runID,
			Key:         key,
			Data:        data,
			ContentType: tool.SniffContentType(data),
			Hit:         true,
		}, nil
	}

	logger.Debug("cache miss", "src", ps.Source())

	if !w.coalesce {
		return w.miss(ctx, ps, store, key, runID, logger)
	}

	// The shared render outlives any one caller; each caller waits on its
	// own context.
	ch := w.group.DoChan(key.String(), func() (any, error) {
		return w.miss(context.WithoutCancel(ctx), ps, store, key, runID, logger)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := r.Val.(*Result)
		if r.Shared {
			copied := *res
			copied.RunID = runID
			return &copied, nil
		}
		return res, nil
	}
}

// lookup treats any store failure as a miss.
func (w *RenderWorkflow) lookup(ctx context.Context, store storage.Store, key params.Key, logger *slog.Logger) ([]byte, bool) {
	start := time.Now()
	defer w.metrics.Observe(metrics.StageLookup, start)

	data, ok, err := store.Lookup(ctx, key)
	if err != nil {
		w.metrics.StoreError(metrics.OpLookup)
		logger.Warn("cache lookup failed, rendering", "error", &storage.StoreError{Op: metrics.OpLookup, Key: key, Err: err})
		return nil, false
	}
	return data, ok
}

func (w *RenderWorkflow) miss(ctx context.Context, ps *params.Set, store storage.Store, key params.Key, runID string, logger *slog.Logger) (*Result, error) {
	provider, err := w.components.Provider()
	if err != nil {
		return nil, err
	}
	tl, err := w.components.Tool()
	if err != nil {
		return nil, err
	}

	// Step 1: fetch source
	start := time.Now()
	src, err := provider.Fetch(ctx, ps.Source())
	w.metrics.Observe(metrics.StageFetch, start)
	if err != nil {
		var pe *storage.ProviderError
		if !errors.As(err, &pe) {
			err = &storage.ProviderError{Locator: ps.Source(), Err: err}
		}
		return nil, err
	}
	logger.Debug("source fetched", "bytes", len(src))

	// Step 2: transform
	start = time.Now()
	out, modified, err := transform(ctx, tl, ps, src)
	w.metrics.Observe(metrics.StageTransform, start)
	if err != nil {
		return nil, err
	}
	logger.Debug("transformed", "modified", modified, "format", out.Format, "bytes", len(out.Data))

	// Step 3: persist, best effort
	start = time.Now()
	if err := store.Write(ctx, key, out.Data); err != nil {
		w.metrics.StoreError(metrics.OpWrite)
		logger.Warn("cache write failed", "error", &storage.StoreError{Op: metrics.OpWrite, Key: key, Err: err})
	}
	w.metrics.Observe(metrics.StagePersist, start)

	if w.ledger != nil {
		if _, err := w.ledger.Record(ctx, key, ps.Source()); err != nil {
			logger.Warn("render ledger update failed", "error", err)
		}
	}

	return &Result{
		RunID:       runID,
		Key:         key,
		Data:        out.Data,
		ContentType: out.ContentType,
	}, nil
}

func transform(ctx context.Context, tl tool.Tool, ps *params.Set, src []byte) (*tool.Output, bool, error) {
	img, err := tl.Decode(ctx, src)
	if err != nil {
		return nil, false, err
	}
	modified, err := tl.ApplyFilters(ctx, ps, img)
	if err != nil {
		return nil, false, err
	}
	out, err := tl.Encode(ctx, ps, img)
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, &tool.ToolError{Op: tool.OpEncode, Err: fmt.Errorf("no output")}
	}
	return out, modified, nil
}
