package filters

import (
	"fmt"
	"sort"
	"strings"
)

// Options carries tool-level limits into filters that need them.
type Options struct {
	MaxWidth  int
	MaxHeight int
}

// Constructor builds a filter from tool options.
type Constructor func(Options) Filter

// DefaultOrder is the chain used when no filters are configured.
var DefaultOrder = []string{"crop", "resize", "rotate", "flip", "adjust", "blur", "sharpen", "effect", "flatten"}

var builtin = map[string]Constructor{
	"resize":  func(o Options) Filter { return Resize{MaxWidth: o.MaxWidth, MaxHeight: o.MaxHeight} },
	"crop":    func(Options) Filter { return Crop{} },
	"rotate":  func(Options) Filter { return Rotate{} },
	"flip":    func(Options) Filter { return Flip{} },
	"adjust":  func(Options) Filter { return Adjust{} },
	"blur":    func(Options) Filter { return Blur{} },
	"sharpen": func(Options) Filter { return Sharpen{} },
	"effect":  func(Options) Filter { return Effect{} },
	"flatten": func(Options) Filter { return Flatten{} },
}

// Names returns the built-in filter names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves names into a chain. An empty list yields DefaultOrder.
// Unknown names wrap ErrUnknownFilter.
func Build(names []string, opts Options) (Chain, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}

	fs := make([]Filter, 0, len(names))
	for _, name := range names {
		ctor, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return Chain{}, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
		}
		fs = append(fs, ctor(opts))
	}
	return NewChain(fs...), nil
}
