// Package params holds the parameter bag of a single image request and derives
// the cache key that addresses the rendered variant.
//
// Keys are lowercased on insert. Values are kept verbatim. The canonical form
// used for key derivation covers only non-empty entries, sorted by key, so two
// requests with the same non-empty parameters map to the same cache entry no
// matter how they were ordered or which empty parameters they carried.
package params

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	// SourceParam names the entry that locates the source image.
	SourceParam = "src"

	// DefaultKeyLength is the maximum length of a derived cache key.
	DefaultKeyLength = 64
)

// Key is a hex digest addressing one rendered variant in a store.
type Key string

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}

// Set is an ordered-by-key bag of request parameters.
// The zero value is ready to use. A Set must not be mutated once it has been
// handed to a render.
type Set struct {
	values map[string]string
}

// New creates an empty parameter set.
func New() *Set {
	return &Set{values: make(map[string]string)}
}

// FromMap builds a set from a plain map. Every entry is inserted, including
// empty values.
func FromMap(m map[string]string) *Set {
	s := New()
	for k, v := range m {
		s.Set(k, v)
	}
	return s
}

// Set inserts or overwrites key. An empty value stays retrievable but does not
// take part in key derivation.
func (s *Set) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[normalize(key)] = value
}

// Add applies request collection semantics: an existing key is overwritten
// even by an empty value, a new key is only inserted when its value is
// non-empty.
func (s *Set) Add(key, value string) {
	k := normalize(key)
	if _, ok := s.values[k]; ok {
		s.values[k] = value
		return
	}
	if value != "" {
		s.Set(k, value)
	}
}

// Get returns the value stored for key and whether it is present.
func (s *Set) Get(key string) (string, bool) {
	v, ok := s.values[normalize(key)]
	return v, ok
}

// Value returns the value for key, or "" when absent.
func (s *Set) Value(key string) string {
	return s.values[normalize(key)]
}

// Has reports whether key is present with a non-empty value.
func (s *Set) Has(key string) bool {
	return s.Value(key) != ""
}

// Source returns the source image locator.
func (s *Set) Source() string {
	return s.Value(SourceParam)
}

// Len returns the number of entries, empty ones included.
func (s *Set) Len() int {
	return len(s.values)
}

// Keys returns every key in ascending order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the entries.
func (s *Set) Map() map[string]string {
	m := make(map[string]string, len(s.values))
	for k, v := range s.values {
		m[k] = v
	}
	return m
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	return FromMap(s.values)
}

// Canonical returns the "k1=v1&k2=v2" form of the non-empty entries. Values
// are written verbatim, so a value containing '&' or '=' can produce the same
// string, and key, as a different set: {a: "1&b=2"} and {a: "1", b: "2"}.
func (s *Set) Canonical() string {
	var b strings.Builder
	for _, k := range s.Keys() {
		v := s.values[k]
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// DeriveKey returns the cache key truncated to DefaultKeyLength.
func (s *Set) DeriveKey() Key {
	return s.DeriveKeyN(DefaultKeyLength)
}

// DeriveKeyN returns the cache key truncated to maxLength hex characters.
// A non-positive maxLength means DefaultKeyLength.
func (s *Set) DeriveKeyN(maxLength int) Key {
	if maxLength <= 0 {
		maxLength = DefaultKeyLength
	}
	sum := sha256.Sum256([]byte(s.Canonical()))
	str := hex.EncodeToString(sum[:])
	if len(str) > maxLength {
		str = str[:maxLength]
	}
	return Key(str)
}

func normalize(key string) string {
	return strings.ToLower(key)
}
