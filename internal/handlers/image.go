package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tendant/simple-image-handler/internal/workflows"
	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// ParserSource resolves the configured parameter parser.
type ParserSource = workflows.ParserSource

// ImageHandler serves rendered images
type ImageHandler struct {
	parsers  ParserSource
	renderer workflows.Renderer
	logger   *slog.Logger
	maxAge   int
}

// NewImageHandler creates a new image handler
func NewImageHandler(parsers ParserSource, renderer workflows.Renderer, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		parsers:  parsers,
		renderer: renderer,
		logger:   logger.With("system", "http"),
		maxAge:   86400,
	}
}

// HandleImage handles GET /image?src=...
func (h *ImageHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	parser, err := h.parsers.Parameters()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ps := parser.Parse(r.URL.Query())

	// Variants are immutable per key, so a matching ETag needs no render.
	etag := strconv.Quote(h.renderer.Key(ps).String())
	if ps.Source() != "" && r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	res, err := h.renderer.Render(r.Context(), ps)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	cache := pipeline.CacheMiss
	if res.Hit {
		cache = pipeline.CacheHit
	}

	header := w.Header()
	header.Set("Content-Type", res.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(res.Data)))
	header.Set("ETag", strconv.Quote(res.Key.String()))
	header.Set("Cache-Control", "public, max-age="+strconv.Itoa(h.maxAge)+", immutable")
	header.Set(pipeline.HeaderCache, cache)
	header.Set(pipeline.HeaderRunID, res.RunID)
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(res.Data); err != nil {
		h.logger.Debug("write response failed", "run_id", res.RunID, "error", err)
	}
}
