// Package registry resolves the provider, tool, store and parameter parser
// named in configuration into process-lifetime instances.
//
// Identifiers map to constructors through an explicit Catalog. Each kind is
// constructed at most once on success; an unknown identifier or a failed
// construction is returned to the callers that asked and retried on the next
// call.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tendant/simple-image-handler/internal/params"
	"github.com/tendant/simple-image-handler/internal/storage"
	"github.com/tendant/simple-image-handler/internal/tool"
)

// Settings names the implementation selected for each kind.
type Settings struct {
	Provider   string
	Tool       string
	Store      string
	Parameters string
}

// Catalog maps identifiers to constructors.
type Catalog struct {
	Providers  map[string]Factory[storage.Provider]
	Tools      map[string]Factory[tool.Tool]
	Stores     map[string]Factory[storage.Store]
	Parameters map[string]func() params.Parser
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Providers:  make(map[string]Factory[storage.Provider]),
		Tools:      make(map[string]Factory[tool.Tool]),
		Stores:     make(map[string]Factory[storage.Store]),
		Parameters: make(map[string]func() params.Parser),
	}
}

func (c *Catalog) RegisterProvider(id string, f Factory[storage.Provider]) { c.Providers[id] = f }

func (c *Catalog) RegisterTool(id string, f Factory[tool.Tool]) { c.Tools[id] = f }

func (c *Catalog) RegisterStore(id string, f Factory[storage.Store]) { c.Stores[id] = f }

func (c *Catalog) RegisterParameters(id string, f func() params.Parser) { c.Parameters[id] = f }

// Identifiers lists the registered identifiers of a kind, sorted.
func (c *Catalog) Identifiers(kind string) []string {
	var ids []string
	switch kind {
	case KindProvider:
		ids = keys(c.Providers)
	case KindTool:
		ids = keys(c.Tools)
	case KindStore:
		ids = keys(c.Stores)
	case KindParameters:
		ids = keys(c.Parameters)
	}
	sort.Strings(ids)
	return ids
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Registry hands out the configured components. It is safe for concurrent
// use and is passed explicitly to request-handling code.
type Registry struct {
	catalog *Catalog

	mu       sync.RWMutex
	settings Settings

	provider Component[storage.Provider]
	tool     Component[tool.Tool]
	store    Component[storage.Store]
}

// New creates a registry over catalog using settings.
func New(catalog *Catalog, settings Settings) *Registry {
	return &Registry{catalog: catalog, settings: settings}
}

// Configure replaces the identifiers of kinds that have not been resolved
// yet. Already constructed components are kept.
func (r *Registry) Configure(settings Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = settings
}

// Settings returns the current identifiers.
func (r *Registry) Settings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *Registry) Provider() (storage.Provider, error) {
	return resolve(&r.provider, KindProvider, r.Settings().Provider, r.catalog.Providers)
}

func (r *Registry) Tool() (tool.Tool, error) {
	return resolve(&r.tool, KindTool, r.Settings().Tool, r.catalog.Tools)
}

func (r *Registry) Store() (storage.Store, error) {
	return resolve(&r.store, KindStore, r.Settings().Store, r.catalog.Stores)
}

// Parameters returns a fresh parser for each call.
func (r *Registry) Parameters() (params.Parser, error) {
	id := r.Settings().Parameters
	ctor, ok := r.catalog.Parameters[id]
	if !ok {
		return nil, &ConfigurationError{Kind: KindParameters, Identifier: id}
	}
	return ctor(), nil
}

// Close releases constructed components that hold resources.
func (r *Registry) Close() error {
	var errs []error
	if s, ok := r.store.Peek(); ok {
		errs = append(errs, closeIfCloser(s))
	}
	if p, ok := r.provider.Peek(); ok {
		errs = append(errs, closeIfCloser(p))
	}
	if t, ok := r.tool.Peek(); ok {
		errs = append(errs, closeIfCloser(t))
	}
	return errors.Join(errs...)
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func resolve[T any](c *Component[T], kind, id string, factories map[string]Factory[T]) (T, error) {
	if inst, ok := c.Peek(); ok {
		return inst, nil
	}

	factory, ok := factories[id]
	if !ok {
		var zero T
		return zero, &ConfigurationError{Kind: kind, Identifier: id}
	}

	inst, err := c.Get(factory)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			return inst, err
		}
		return inst, &ConfigurationError{Kind: kind, Identifier: id, Err: fmt.Errorf("construct: %w", err)}
	}
	return inst, nil
}
