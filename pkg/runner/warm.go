package runner

import (
	"context"
	"net/url"

	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// Warm renders values ahead of demand. With DBOS configured the render is
// queued and only the response is set; otherwise it runs inline and only the
// result is set.
func (r *Runner) Warm(ctx context.Context, values url.Values) (*pipeline.WarmResponse, *pipeline.WarmResult, error) {
	req := pipeline.WarmRequest{Params: make(map[string]string, len(values))}
	for k := range values {
		req.Params[k] = values.Get(k)
	}

	if r.runner.Async() {
		resp, err := r.runner.RunAsync(ctx, req)
		return resp, nil, err
	}

	res, err := r.runner.Run(ctx, req)
	return nil, res, err
}

// WarmStatus reports the state of a queued warm
func (r *Runner) WarmStatus(ctx context.Context, runID string) (*pipeline.WarmStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}
