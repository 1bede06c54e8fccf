// Package filters implements the ordered transformation steps applied to a
// decoded image.
//
// A Filter reads its settings from the request parameters and either leaves
// the image alone (reporting unmodified) or returns a new image. A Chain runs
// its filters strictly in declared order against an image it owns for the
// duration of the call; images are never shared between renders.
package filters

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/tendant/simple-image-handler/internal/params"
)

// Filter is a single transformation step.
type Filter interface {
	// Name identifies the filter in configuration and errors.
	Name() string

	// Params lists the request parameters the filter reads.
	Params() []string

	// Process returns the transformed image and true, or img unchanged and
	// false when the request does not ask for this step.
	Process(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error)
}

// Chain is an immutable ordered sequence of filters, safe for concurrent use.
type Chain struct {
	filters []Filter
}

// NewChain creates a chain running filters in the given order.
func NewChain(filters ...Filter) Chain {
	fs := make([]Filter, len(filters))
	copy(fs, filters)
	return Chain{filters: fs}
}

// Len returns the number of steps.
func (c Chain) Len() int {
	return len(c.filters)
}

// Names returns the step names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}

// Params returns the union of parameters read by the chain, sorted.
func (c Chain) Params() []string {
	seen := make(map[string]struct{})
	for _, f := range c.filters {
		for _, p := range f.Params() {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Apply runs every step against img. The result is modified when at least one
// step modified the image. The first failing step aborts the chain with a
// *FilterError.
func (c Chain) Apply(ctx context.Context, ps *params.Set, img image.Image) (image.Image, bool, error) {
	modified := false

	for _, f := range c.filters {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		out, changed, err := f.Process(ctx, ps, img)
		if err != nil {
			return nil, false, &FilterError{Filter: f.Name(), Err: err}
		}
		if !changed {
			continue
		}
		if out == nil {
			return nil, false, &FilterError{Filter: f.Name(), Err: ErrEmptyImage}
		}
		if b := out.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
			return nil, false, &FilterError{
				Filter: f.Name(),
				Err:    fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy()),
			}
		}

		img = out
		modified = true
	}

	return img, modified, nil
}
