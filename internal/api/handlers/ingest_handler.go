package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/extract"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/pipeline"
	"github.com/logsieve/logsieve/internal/storage"
)

// IngestHandler handles /api/logs/ingest requests for single structured
// entries. The message is stored as-is; no line-format detection runs here.
type IngestHandler struct {
	processor *pipeline.Processor
	logger    *logging.Logger
}

// NewIngestHandler creates a new handler
func NewIngestHandler(processor *pipeline.Processor, logger *logging.Logger) *IngestHandler {
	return &IngestHandler{processor: processor, logger: logger}
}

type ingestRequest struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
}

// Handle processes a single log entry ingest request
func (h *IngestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error())
		return
	}
	if req.Message == "" {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required")
		return
	}

	now := time.Now().UTC()
	timestamp := now
	if req.Timestamp != "" {
		if ts, ok := extract.ISOTimestamp(req.Timestamp); ok {
			timestamp = ts
		} else {
			h.logger.Warn("Unparseable ingest timestamp %q, using ingest time", req.Timestamp)
		}
	}
	level := models.LevelInfo
	if req.Level != "" {
		level = strings.ToUpper(req.Level)
	}

	record := &models.LogRecord{
		Timestamp: timestamp,
		Level:     level,
		Message:   req.Message,
		Source:    req.Source,
		LogType:   "unknown",
		Metadata:  req.Metadata,
	}

	id, result, err := h.processor.IngestRecord(r.Context(), record)
	if err != nil {
		h.logger.Error("Failed to ingest log entry: %v", err)
		if errors.Is(err, storage.ErrStorageUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "INGEST_FAILED", err.Error())
		return
	}

	_ = response.WriteSuccess(w, map[string]any{
		"message":     "Log ingested successfully",
		"log_id":      id,
		"template_id": result.TemplateID,
		"template":    result.Template,
	})
}
