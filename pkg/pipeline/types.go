// Package pipeline holds the wire types shared by the HTTP API, the client
// and the warm queue.
package pipeline

// WarmRequest asks the service to render a parameter set ahead of the first
// client request so the result is already cached.
type WarmRequest struct {
	Params map[string]string `json:"params"`
}

// WarmResponse is returned when a warm request is enqueued
type WarmResponse struct {
	RunID string `json:"run_id"`
	Key   string `json:"key"`
}

// WarmResult is the outcome of a warm render, recorded by the queue
type WarmResult struct {
	Key         string `json:"key"`
	Bytes       int    `json:"bytes"`
	ContentType string `json:"content_type"`
	Hit         bool   `json:"hit"`
}

// WarmStatus reports the state of an enqueued warm render
type WarmStatus struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"` // pending, enqueued, succeeded, failed, cancelled
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// ErrorResponse is the JSON body of every non-image error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Response headers set on image responses.
const (
	HeaderCache = "X-Cache"
	HeaderRunID = "X-Run-ID"

	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// Warm workflow states
const (
	StatePending   = "pending"
	StateEnqueued  = "enqueued"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)
