package handlers

import (
	"net/http"
	"time"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/mining"
	"github.com/logsieve/logsieve/internal/storage"
)

// HealthHandler handles /api/health requests
type HealthHandler struct {
	store  storage.Storage
	miner  *mining.Miner
	logger *logging.Logger
}

// NewHealthHandler creates a new handler
func NewHealthHandler(store storage.Storage, miner *mining.Miner, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{store: store, miner: miner, logger: logger}
}

// Handle reports component health. Storage reachability decides the verdict;
// the miner is in-process and reported informationally.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed: %v", err)
		_ = response.Write(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"timestamp": now,
			"error":     err.Error(),
		})
		return
	}

	_ = response.WriteSuccess(w, map[string]any{
		"status":    "healthy",
		"timestamp": now,
		"services": map[string]string{
			"storage": "connected",
			"miner":   "running",
		},
	})
}

// RootHandler handles the / index endpoint
func RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		response.WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown endpoint")
		return
	}
	_ = response.WriteSuccess(w, map[string]any{
		"message": "LogSieve API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":     "/api/health",
			"upload":     "/api/logs/upload",
			"ingest":     "/api/logs/ingest",
			"fluent_bit": "/api/logs/ingest/fluent-bit",
			"query":      "/api/logs/query",
			"templates":  "/api/templates",
			"stats":      "/api/stats",
			"files":      "/api/files",
			"file_stats": "/api/files/{file_id}/stats",
			"metrics":    "/metrics",
		},
	})
}
