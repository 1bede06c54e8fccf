// Package storage provides the source image providers and the rendered-variant
// stores used by the render pipeline.
//
// A Provider fetches raw source bytes for a locator taken from the request's
// src parameter. A Store persists rendered bytes under a cache key and hands
// them back on later requests. Stores are an optimization: callers treat their
// errors as soft.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/tendant/simple-image-handler/internal/params"
)

// Provider fetches source image bytes.
type Provider interface {
	// Fetch returns the bytes addressed by locator.
	// Returns ErrNotFound if nothing exists at locator.
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Store persists rendered variants addressed by cache key.
type Store interface {
	// Lookup returns (data, true, nil) on a hit and (nil, false, nil) on a miss.
	// An I/O failure returns (nil, false, err).
	Lookup(ctx context.Context, key params.Key) ([]byte, bool, error)

	// Write stores data at key, overwriting any previous entry.
	Write(ctx context.Context, key params.Key, data []byte) error
}

// Metadata contains source object metadata
type Metadata struct {
	Size        int64
	ContentType string
	ETag        string
}

// readLimited reads r fully, failing once more than limit bytes arrive.
// A non-positive limit disables the check.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, limit)
	}
	return data, nil
}

func validKey(key params.Key) error {
	if key == "" {
		return ErrInvalidKey
	}
	for _, c := range key {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ErrInvalidKey
		}
	}
	return nil
}
