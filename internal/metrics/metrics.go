// Package metrics records render outcomes with Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "image_handler"

// Request results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Store operations.
const (
	OpLookup = "lookup"
	OpWrite  = "write"
)

// Render stages.
const (
	StageLookup    = "lookup"
	StageFetch     = "fetch"
	StageTransform = "transform"
	StagePersist   = "persist"
	StageTotal     = "total"
)

// Recorder owns the collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Render requests by result.",
		}, []string{"result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Soft store failures by operation.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent per render stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	r.registry.MustRegister(
		r.requests,
		r.storeErrors,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Request counts one request with the given result.
func (r *Recorder) Request(result string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(result).Inc()
}

// StoreError counts a soft store failure.
func (r *Recorder) StoreError(op string) {
	if r == nil {
		return
	}
	r.storeErrors.WithLabelValues(op).Inc()
}

// Observe records how long a stage took since start.
func (r *Recorder) Observe(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Requests exposes the request counter, for tests.
func (r *Recorder) Requests() *prometheus.CounterVec { return r.requests }

// StoreErrors exposes the store error counter, for tests.
func (r *Recorder) StoreErrors() *prometheus.CounterVec { return r.storeErrors }
