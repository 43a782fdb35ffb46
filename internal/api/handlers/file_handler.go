package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/stats"
	"github.com/logsieve/logsieve/internal/storage"
)

// FileHandler handles /api/files and /api/files/{id}/stats requests
type FileHandler struct {
	store      storage.Storage
	aggregator *stats.Aggregator
	logger     *logging.Logger
}

// NewFileHandler creates a new handler
func NewFileHandler(store storage.Storage, aggregator *stats.Aggregator, logger *logging.Logger) *FileHandler {
	return &FileHandler{store: store, aggregator: aggregator, logger: logger}
}

// HandleList returns all upload manifests, newest first
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.GetFiles(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch files: %v", err)
		if errors.Is(err, storage.ErrStorageUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	_ = response.WriteSuccess(w, files)
}

// HandleStats routes /api/files/{id}/stats
func (h *FileHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	fileID := strings.TrimSuffix(rest, "/stats")
	if fileID == "" || fileID == rest {
		response.WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown files endpoint")
		return
	}

	fileStats, err := h.aggregator.FileStats(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "NOT_FOUND", "File not found")
			return
		}
		h.logger.Error("Failed to compute stats for file %s: %v", fileID, err)
		if errors.Is(err, storage.ErrStorageUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	_ = response.WriteSuccess(w, fileStats)
}
