package workflows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-image-handler/internal/filters"
	"github.com/tendant/simple-image-handler/internal/registry"
	"github.com/tendant/simple-image-handler/internal/storage"
	"github.com/tendant/simple-image-handler/internal/tool"
)

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"missing src", ErrMissingSource, http.StatusBadRequest},
		{"configuration", &registry.ConfigurationError{Kind: "store", Identifier: "x"}, http.StatusInternalServerError},
		{"not found", &storage.ProviderError{Locator: "a", Err: storage.ErrNotFound}, http.StatusNotFound},
		{"bad locator", &storage.ProviderError{Locator: "../a", Err: storage.ErrInvalidLocator}, http.StatusBadRequest},
		{"forbidden", &storage.ProviderError{Locator: "a", Err: storage.ErrPermissionDenied}, http.StatusForbidden},
		{"too large", &storage.ProviderError{Locator: "a", Err: storage.ErrSourceTooLarge}, http.StatusRequestEntityTooLarge},
		{"upstream", &storage.ProviderError{Locator: "a", Err: errors.New("503")}, http.StatusBadGateway},
		{"invalid filter param", &filters.FilterError{Filter: "crop", Err: filters.ErrInvalidParameter}, http.StatusBadRequest},
		{"filter failure", &filters.FilterError{Filter: "crop", Err: filters.ErrEmptyImage}, http.StatusUnprocessableEntity},
		{"decode failure", &tool.ToolError{Op: tool.OpDecode, Err: tool.ErrUnsupportedFormat}, http.StatusUnprocessableEntity},
		{"source too many pixels", &tool.ToolError{Op: tool.OpDecode, Err: fmt.Errorf("%w: 50000x50000", tool.ErrImageTooLarge)}, http.StatusRequestEntityTooLarge},
		{"invalid format", &tool.ToolError{Op: tool.OpEncode, Err: fmt.Errorf("%w: format", filters.ErrInvalidParameter)}, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"no runtime", ErrRuntimeUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("?"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapHTTPStatus(tt.err))
		})
	}
}
