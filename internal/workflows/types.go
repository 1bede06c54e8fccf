package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"

	"github.com/tendant/simple-image-handler/internal/dbosruntime"
	"github.com/tendant/simple-image-handler/internal/params"
	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// Renderer renders a parameter set. *RenderWorkflow implements it.
type Renderer interface {
	Render(ctx context.Context, ps *params.Set) (*Result, error)
	Key(ps *params.Set) params.Key
}

// ParserSource resolves the configured parameter parser.
type ParserSource interface {
	Parameters() (params.Parser, error)
}

// WorkflowRunner runs warm renders, synchronously or on the DBOS queue
type WorkflowRunner struct {
	renderer    Renderer
	parsers     ParserSource
	dbosRuntime *dbosruntime.Runtime
	logger      *slog.Logger
}

// NewWorkflowRunner creates a runner. Warm params go through the parser from
// parsers, so they map to the same key as the equivalent image request; a nil
// parsers takes them verbatim. dbosRuntime may be nil, in which case only
// synchronous warms are available. Must be called before the runtime is
// launched.
func NewWorkflowRunner(renderer Renderer, parsers ParserSource, dbosRuntime *dbosruntime.Runtime, logger *slog.Logger) *WorkflowRunner {
	runner := &WorkflowRunner{
		renderer:    renderer,
		parsers:     parsers,
		dbosRuntime: dbosRuntime,
		logger:      logger.With("system", "warm"),
	}

	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWarmDBOS)
	}

	return runner
}

// Async reports whether warms can be enqueued
func (r *WorkflowRunner) Async() bool {
	return r.dbosRuntime != nil
}

// Run renders req immediately
func (r *WorkflowRunner) Run(ctx context.Context, req pipeline.WarmRequest) (*pipeline.WarmResult, error) {
	ps, err := r.params(req)
	if err != nil {
		return nil, err
	}

	res, err := r.renderer.Render(ctx, ps)
	if err != nil {
		return nil, err
	}

	return &pipeline.WarmResult{
		Key:         res.Key.String(),
		Bytes:       len(res.Data),
		ContentType: res.ContentType,
		Hit:         res.Hit,
	}, nil
}

// RunAsync enqueues req on the DBOS queue and returns the workflow ID and
// the cache key it will fill
func (r *WorkflowRunner) RunAsync(ctx context.Context, req pipeline.WarmRequest) (*pipeline.WarmResponse, error) {
	if r.dbosRuntime == nil {
		return nil, ErrRuntimeUnavailable
	}

	ps, err := r.params(req)
	if err != nil {
		return nil, err
	}
	key := r.renderer.Key(ps)

	workflowID := fmt.Sprintf("warm-%s-%d", key, time.Now().UnixNano())

	handle, err := dbos.RunWorkflow[pipeline.WarmRequest, *pipeline.WarmResult](
		r.dbosRuntime.Context(),
		r.executeWarmDBOS,
		pipeline.WarmRequest{Params: ps.Map()},
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue warm: %w", err)
	}

	r.logger.Info("warm enqueued", "run_id", handle.GetWorkflowID(), "key", key, "src", ps.Source())
	return &pipeline.WarmResponse{RunID: handle.GetWorkflowID(), Key: key.String()}, nil
}

// params parses req the way image requests are parsed
func (r *WorkflowRunner) params(req pipeline.WarmRequest) (*params.Set, error) {
	var ps *params.Set
	if r.parsers == nil {
		ps = params.FromMap(req.Params)
	} else {
		parser, err := r.parsers.Parameters()
		if err != nil {
			return nil, err
		}
		values := make(url.Values, len(req.Params))
		for k, v := range req.Params {
			values.Set(k, v)
		}
		ps = parser.Parse(values)
	}

	if ps.Source() == "" {
		return nil, ErrMissingSource
	}
	return ps, nil
}

// executeWarmDBOS is the DBOS workflow function for queued warms
func (r *WorkflowRunner) executeWarmDBOS(dbosCtx dbos.DBOSContext, req pipeline.WarmRequest) (*pipeline.WarmResult, error) {
	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return nil, err
	}

	// DBOSContext implements context.Context
	res, err := r.Run(dbosCtx, req)
	if err != nil {
		r.logger.Warn("warm failed", "run_id", workflowID, "error", err)
		return nil, err
	}

	r.logger.Info("warm completed", "run_id", workflowID, "key", res.Key, "hit", res.Hit, "bytes", res.Bytes)
	return res, nil
}

// GetStatus retrieves the status of a queued warm
func (r *WorkflowRunner) GetStatus(ctx context.Context, runID string) (*pipeline.WarmStatus, error) {
	if r.dbosRuntime == nil {
		return nil, ErrRuntimeUnavailable
	}

	info, err := r.dbosRuntime.GetWorkflowStatus(ctx, runID)
	if errors.Is(err, dbosruntime.ErrWorkflowNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	return &pipeline.WarmStatus{
		RunID:     info.WorkflowUUID,
		State:     info.State(),
		Name:      info.Name,
		CreatedAt: info.CreatedAt,
		UpdatedAt: info.UpdatedAt,
	}, nil
}
