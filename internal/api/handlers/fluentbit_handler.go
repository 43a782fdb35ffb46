package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/extract"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/pipeline"
)

// FluentBitHandler handles /api/logs/ingest/fluent-bit batch requests.
// Entries are independent: one bad entry never fails the batch.
type FluentBitHandler struct {
	processor *pipeline.Processor
	logger    *logging.Logger
}

// NewFluentBitHandler creates a new handler
func NewFluentBitHandler(processor *pipeline.Processor, logger *logging.Logger) *FluentBitHandler {
	return &FluentBitHandler{processor: processor, logger: logger}
}

type fluentBitEntry struct {
	Log    string `json:"log"`
	Time   string `json:"time"`
	Tag    string `json:"tag"`
	Source string `json:"source"`
}

// Handle processes a batch of forwarded entries
func (h *FluentBitHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var entries []fluentBitEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error())
		return
	}

	processed := 0
	failed := 0
	for _, entry := range entries {
		if entry.Log == "" {
			failed++
			continue
		}

		timestamp := time.Now().UTC()
		if entry.Time != "" {
			if ts, ok := extract.ISOTimestamp(entry.Time); ok {
				timestamp = ts
			} else {
				h.logger.Warn("Unparseable forwarded timestamp %q, using ingest time", entry.Time)
			}
		}

		source := entry.Source
		if source == "" {
			source = entry.Tag
		}
		if source == "" {
			source = "fluent-bit"
		}

		record := &models.LogRecord{
			Timestamp: timestamp,
			Level:     models.LevelInfo,
			Message:   entry.Log,
			Source:    source,
			LogType:   "unknown",
		}
		if entry.Tag != "" {
			record.Metadata = map[string]any{"tag": entry.Tag}
		}

		if _, _, err := h.processor.IngestRecord(r.Context(), record); err != nil {
			h.logger.Error("Failed to ingest forwarded entry: %v", err)
			failed++
			continue
		}
		processed++
	}

	_ = response.WriteSuccess(w, map[string]any{
		"message":        "Fluent Bit logs processed",
		"processed_logs": processed,
		"failed_logs":    failed,
	})
}
