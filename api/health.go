package api

import (
	"net/http"

	"github.com/stanchat/stan/internal/conversation"
	"github.com/stanchat/stan/internal/log"
)

// HealthHandler handles the health and statistics endpoints.
type HealthHandler struct {
	engine *conversation.Engine
	logger log.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine *conversation.Engine, logger log.Logger) *HealthHandler {
	return &HealthHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /stats", h.handleStats)
}

// StatsResponse is the GET /stats response body.
type StatsResponse struct {
	StorageType            string `json:"storage_type"`
	TotalSessions          int    `json:"total_sessions"`
	ActiveSessionsLastHour int    `json:"active_sessions_last_hour"`
}

// handleHealth reports the service snapshot: generation and storage mode
// plus session counters. The service answering at all means it is healthy;
// degraded backends show up in the mode fields, not the status code.
func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.engine.Health(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read health")
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// handleStats reports session statistics.
func (h *HealthHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	storageType, stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read stats")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		StorageType:            storageType,
		TotalSessions:          stats.TotalSessions,
		ActiveSessionsLastHour: stats.ActiveSessionsLastHour,
	})
}
