// Package client is an HTTP client for a running image handler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// StatusError is returned for any non-success response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Image is a rendered image fetched from the server
type Image struct {
	Data        []byte
	ContentType string
	Key         string
	RunID       string
	Hit         bool
}

// WarmOutcome is the reply to a warm request. Response is set when the
// render was queued, Result when it ran inline.
type WarmOutcome struct {
	Response *pipeline.WarmResponse
	Result   *pipeline.WarmResult
}

// Queued reports whether the server enqueued the render
func (o *WarmOutcome) Queued() bool {
	return o.Response != nil
}

// Client talks to the image handler HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Image renders values on the server and returns the bytes
func (c *Client) Image(ctx context.Context, values url.Values) (*Image, error) {
	u := fmt.Sprintf("%s/image?%s", c.baseURL, values.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return &Image{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Key:         strings.Trim(resp.Header.Get("ETag"), `"`),
		RunID:       resp.Header.Get(pipeline.HeaderRunID),
		Hit:         resp.Header.Get(pipeline.HeaderCache) == pipeline.CacheHit,
	}, nil
}

// Warm asks the server to render req ahead of demand
func (c *Client) Warm(ctx context.Context, req pipeline.WarmRequest) (*WarmOutcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/warm", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		var warmResp pipeline.WarmResponse
		if err := json.NewDecoder(resp.Body).Decode(&warmResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &WarmOutcome{Response: &warmResp}, nil
	case http.StatusOK:
		var res pipeline.WarmResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &WarmOutcome{Result: &res}, nil
	default:
		return nil, statusError(resp)
	}
}

// WarmStatus gets the state of a queued warm render
func (c *Client) WarmStatus(ctx context.Context, runID string) (*pipeline.WarmStatus, error) {
	u := fmt.Sprintf("%s/v1/warm/%s", c.baseURL, url.PathEscape(runID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var status pipeline.WarmStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// WaitForWarm polls the status of runID until it leaves the pending and
// enqueued states or ctx is done.
func (c *Client) WaitForWarm(ctx context.Context, runID string, interval time.Duration) (*pipeline.WarmStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.WarmStatus(ctx, runID)
		if err != nil {
			return nil, err
		}
		if status.State != pipeline.StatePending && status.State != pipeline.StateEnqueued {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func statusError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)

	var er pipeline.ErrorResponse
	if err := json.Unmarshal(bodyBytes, &er); err == nil && er.Error != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: er.Error}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
}
