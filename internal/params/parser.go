package params

import (
	"net/url"
	"sort"
	"strings"
)

// Parser turns an incoming query into a parameter set.
type Parser interface {
	Parse(values url.Values) *Set
}

// SimpleParser keeps every parameter of the request.
type SimpleParser struct{}

// Parse applies Add for the first value of every query key. Keys are visited
// in sorted order so that keys differing only in case resolve the same way on
// every call.
func (SimpleParser) Parse(values url.Values) *Set {
	s := New()
	for _, key := range sortedKeys(values) {
		s.Add(key, first(values[key]))
	}
	return s
}

// FilteredParser keeps only parameters some render stage understands, so query
// noise such as cache busters does not fragment the cache.
type FilteredParser struct {
	allowed map[string]struct{}
}

// NewFilteredParser creates a parser accepting src plus the given names.
func NewFilteredParser(names ...string) *FilteredParser {
	allowed := map[string]struct{}{SourceParam: {}}
	for _, n := range names {
		allowed[normalize(n)] = struct{}{}
	}
	return &FilteredParser{allowed: allowed}
}

// Parse applies Add for allowed keys and drops the rest.
func (p *FilteredParser) Parse(values url.Values) *Set {
	s := New()
	for _, key := range sortedKeys(values) {
		if _, ok := p.allowed[normalize(key)]; !ok {
			continue
		}
		s.Add(key, first(values[key]))
	}
	return s
}

// Allowed returns the accepted parameter names in ascending order.
func (p *FilteredParser) Allowed() []string {
	names := make([]string, 0, len(p.allowed))
	for n := range p.allowed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseArgs builds a set from "key=value" pairs, as given on a command line.
// Arguments without '=' are treated as keys with an empty value.
func ParseArgs(args []string) *Set {
	s := New()
	for _, arg := range args {
		k, v, _ := strings.Cut(arg, "=")
		s.Add(k, v)
	}
	return s
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
