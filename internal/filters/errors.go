package filters

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when a filter parameter cannot be parsed
	// or is out of range.
	ErrInvalidParameter = errors.New("invalid filter parameter")

	// ErrEmptyImage is returned when a filter produces a nil or zero-area image.
	ErrEmptyImage = errors.New("filter produced an empty image")

	// ErrUnknownFilter is returned when a configured filter name is not in the
	// catalog.
	ErrUnknownFilter = errors.New("unknown filter")
)

// FilterError reports a failing step of a chain.
type FilterError struct {
	Filter string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Filter, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}
