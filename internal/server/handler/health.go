package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jarrettlin/execcore/internal/broker"
)

// HealthHandler serves the health and readiness endpoints.
type HealthHandler struct {
	broker broker.Client
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. broker may be nil, in which
// case readiness always reports true (liveness-only deployments).
func NewHealthHandler(broker broker.Client, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{broker: broker, logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the process is
// alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness responds 200 once the broker session has completed login and
// is accepting requests, 503 otherwise.
// GET /api/ready
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}

	ready, err := h.broker.Ready(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "readiness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
