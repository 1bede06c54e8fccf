package registry

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Factory constructs a component instance.
type Factory[T any] func() (T, error)

// Component is a lazily constructed process-lifetime singleton. Concurrent
// first callers share one construction attempt; a failed attempt is not
// remembered, so the next caller tries again.
type Component[T any] struct {
	instance atomic.Pointer[T]
	group    singleflight.Group
}

// Get returns the instance, constructing it with factory on first use.
func (c *Component[T]) Get(factory Factory[T]) (T, error) {
	if p := c.instance.Load(); p != nil {
		return *p, nil
	}

	v, err, _ := c.group.Do("instance", func() (any, error) {
		if p := c.instance.Load(); p != nil {
			return *p, nil
		}
		inst, err := factory()
		if err != nil {
			return nil, err
		}
		c.instance.Store(&inst)
		return inst, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Loaded reports whether the instance has been constructed.
func (c *Component[T]) Loaded() bool {
	return c.instance.Load() != nil
}

// Peek returns the instance if constructed.
func (c *Component[T]) Peek() (T, bool) {
	if p := c.instance.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}
