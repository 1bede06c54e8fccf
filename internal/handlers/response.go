package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tendant/simple-image-handler/internal/workflows"
	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pipeline.ErrorResponse{Error: msg, Status: status})
}

// writeError maps err to a status. Server-side failures are logged and their
// detail withheld from the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := workflows.MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
		writeJSONError(w, status, http.StatusText(status))
		return
	}
	writeJSONError(w, status, err.Error())
}
