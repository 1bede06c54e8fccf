package storage

import (
	"context"
	"sync"

	"github.com/tendant/simple-image-handler/internal/params"
)

// MemoryStore keeps rendered variants in process memory. Entries live until
// the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[params.Key][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[params.Key][]byte),
	}
}

func (s *MemoryStore) Lookup(ctx context.Context, key params.Key) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	return clone(data), true, nil
}

func (s *MemoryStore) Write(ctx context.Context, key params.Key, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = clone(data)
	s.mu.Unlock()

	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func clone(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
