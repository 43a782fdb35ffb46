package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/stats"
	"github.com/logsieve/logsieve/internal/storage"
)

// StatsHandler handles /api/stats requests
type StatsHandler struct {
	aggregator *stats.Aggregator
	logger     *logging.Logger
}

// NewStatsHandler creates a new handler
func NewStatsHandler(aggregator *stats.Aggregator, logger *logging.Logger) *StatsHandler {
	return &StatsHandler{aggregator: aggregator, logger: logger}
}

// Handle returns corpus-wide statistics
func (h *StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	overview, err := h.aggregator.Overview(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("Failed to compute stats: %v", err)
		if errors.Is(err, storage.ErrStorageUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	_ = response.WriteSuccess(w, overview)
}
