// Package handlers exposes the render workflow over HTTP.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-image-handler/internal/metrics"
	"github.com/tendant/simple-image-handler/internal/workflows"
)

// Deps are the collaborators of the router.
type Deps struct {
	Parsers  ParserSource
	Renderer workflows.Renderer
	Runner   *workflows.WorkflowRunner
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// NewRouter builds the HTTP routes:
//
//	GET  /health
//	GET  /metrics
//	GET  /image?src=...
//	POST /v1/warm
//	GET  /v1/warm/{runID}
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	images := NewImageHandler(d.Parsers, d.Renderer, d.Logger)
	r.Get("/image", images.HandleImage)
	r.Head("/image", images.HandleImage)

	if d.Runner != nil {
		async := NewAsyncHandler(d.Runner, d.Logger)
		r.Route("/v1/warm", func(r chi.Router) {
			r.Post("/", async.HandleWarm)
			r.Get("/{runID}", async.HandleStatus)
		})
	}

	return r
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("system", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
