package storage

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-image-handler/internal/params"
)

// Storage errors returned by providers and stores.
var (
	// ErrNotFound indicates the requested source does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrPermissionDenied indicates insufficient permissions to read the source.
	ErrPermissionDenied = errors.New("storage: permission denied")

	// ErrInvalidKey indicates a cache key that is empty or not lowercase hex.
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrInvalidLocator indicates a source locator that is empty, escapes the
	// provider root, or cannot be resolved to a URL.
	ErrInvalidLocator = errors.New("storage: invalid locator")

	// ErrSourceTooLarge indicates a source above the configured size limit.
	ErrSourceTooLarge = errors.New("storage: source too large")
)

// ProviderError reports a source image that could not be fetched.
type ProviderError struct {
	Locator string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fetch source %q: %v", e.Locator, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StoreError reports a failed cache lookup or write. It is soft: renders
// proceed without the cache when one occurs.
type StoreError struct {
	Op  string
	Key params.Key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
