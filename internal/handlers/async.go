package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-image-handler/internal/workflows"
	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// AsyncHandler handles warm requests
type AsyncHandler struct {
	workflowRunner *workflows.WorkflowRunner
	logger         *slog.Logger
}

// NewAsyncHandler creates a new async handler
func NewAsyncHandler(runner *workflows.WorkflowRunner, logger *slog.Logger) *AsyncHandler {
	return &AsyncHandler{
		workflowRunner: runner,
		logger:         logger.With("system", "http"),
	}
}

// HandleWarm handles POST /v1/warm. With DBOS the render is enqueued and 202
// is returned; otherwise it runs inline and 200 carries the result.
func (h *AsyncHandler) HandleWarm(w http.ResponseWriter, r *http.Request) {
	var req pipeline.WarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if !h.workflowRunner.Async() {
		res, err := h.workflowRunner.Run(r.Context(), req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	resp, err := h.workflowRunner.RunAsync(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// HandleStatus handles GET /v1/warm/{runID}
func (h *AsyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeJSONError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	status, err := h.workflowRunner.GetStatus(r.Context(), runID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
