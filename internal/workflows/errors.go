package workflows

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tendant/simple-image-handler/internal/filters"
	"github.com/tendant/simple-image-handler/internal/registry"
	"github.com/tendant/simple-image-handler/internal/storage"
	"github.com/tendant/simple-image-handler/internal/tool"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not registered
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidRequest is returned when the request is invalid
	ErrInvalidRequest = errors.New("invalid render request")

	// ErrMissingSource is returned when the parameter set has no src
	ErrMissingSource = fmt.Errorf("%w: missing src parameter", ErrInvalidRequest)

	// ErrRuntimeUnavailable is returned by queue operations without DBOS
	ErrRuntimeUnavailable = errors.New("DBOS runtime not initialized")
)

// MapHTTPStatus maps a render error to an HTTP status code.
func MapHTTPStatus(err error) int {
	var (
		ce *registry.ConfigurationError
		pe *storage.ProviderError
		fe *filters.FilterError
		te *tool.ToolError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRuntimeUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce):
		return http.StatusInternalServerError
	case errors.As(err, &pe):
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return http.StatusNotFound
		case errors.Is(err, storage.ErrInvalidLocator):
			return http.StatusBadRequest
		case errors.Is(err, storage.ErrPermissionDenied):
			return http.StatusForbidden
		case errors.Is(err, storage.ErrSourceTooLarge):
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadGateway
	case errors.As(err, &fe), errors.As(err, &te):
		if errors.Is(err, filters.ErrInvalidParameter) {
			return http.StatusBadRequest
		}
		if errors.Is(err, tool.ErrImageTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
