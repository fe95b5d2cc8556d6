package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ActivityHandler logs and echoes activity payloads posted by the browser.
type ActivityHandler struct {
	logger *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(logger *slog.Logger) *ActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHandler{logger: logger}
}

// Post handles POST /api/activity and responds with {"res": <body>}.
func (h *ActivityHandler) Post(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid request body")
		return
	}

	h.logger.Info("activity_received", slog.String("body", string(body)))
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"res": body})
}
