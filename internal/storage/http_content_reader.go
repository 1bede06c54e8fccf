package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProvider fetches source images over HTTP.
//
// With a base URL configured, locators are paths below it and absolute URLs
// are rejected. Without one, locators must be absolute http(s) URLs.
type HTTPProvider struct {
	baseURL    string
	maxSize    int64
	httpClient *http.Client
}

// NewHTTPProvider creates an HTTP provider.
func NewHTTPProvider(baseURL string, maxSize int64, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads the source at locator.
func (p *HTTPProvider) Fetch(ctx context.Context, locator string) ([]byte, error) {
	target, err := p.url(locator)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download source: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if p.maxSize > 0 && resp.ContentLength > p.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSourceTooLarge, resp.ContentLength)
	}

	return readLimited(resp.Body, p.maxSize)
}

func (p *HTTPProvider) url(locator string) (string, error) {
	if locator == "" {
		return "", ErrInvalidLocator
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	if p.baseURL == "" {
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return "", fmt.Errorf("%w: absolute http(s) URL required", ErrInvalidLocator)
		}
		return u.String(), nil
	}

	if u.IsAbs() || u.Host != "" {
		return "", fmt.Errorf("%w: absolute URL not allowed with a base URL", ErrInvalidLocator)
	}

	return p.baseURL + "/" + strings.TrimLeft(locator, "/"), nil
}
