package tool

import (
	"errors"
	"fmt"
)

const (
	OpDecode = "decode"
	OpEncode = "encode"
)

var (
	ErrEmptySource       = errors.New("empty source")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image dimensions exceed the pixel limit")
)

// ToolError reports a decode or encode failure.
type ToolError struct {
	Op  string
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Op, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
