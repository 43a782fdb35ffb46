package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/extract"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

const defaultQueryLimit = 100

// QueryHandler handles /api/logs/query requests
type QueryHandler struct {
	store  storage.Storage
	logger *logging.Logger
}

// NewQueryHandler creates a new handler
func NewQueryHandler(store storage.Storage, logger *logging.Logger) *QueryHandler {
	return &QueryHandler{store: store, logger: logger}
}

type queryRequest struct {
	TemplateID      string `json:"template_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Level           string `json:"level"`
	Source          string `json:"source"`
	MessageContains string `json:"message_contains"`
	FileID          string `json:"file_id"`
	LogType         string `json:"log_type"`
	HasNetworkInfo  *bool  `json:"has_network_info"`
	Protocol        string `json:"protocol"`
	IPAddress       string `json:"ip_address"`
	Limit           *int   `json:"limit"`
	Offset          int    `json:"offset"`
}

// Handle executes a filtered log query
func (h *QueryHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error())
		return
	}

	filter, err := req.toFilter()
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	limit := defaultQueryLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	total, records, err := h.store.FindRecords(r.Context(), filter, offset, limit)
	if err != nil {
		h.logger.Error("Log query failed: %v", err)
		if errors.Is(err, storage.ErrStorageUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	_ = response.WriteSuccess(w, map[string]any{
		"logs":           records,
		"total_count":    total,
		"returned_count": len(records),
		"offset":         offset,
		"limit":          limit,
	})
}

func (q *queryRequest) toFilter() (models.QueryFilter, error) {
	filter := models.QueryFilter{
		TemplateID:      q.TemplateID,
		Level:           q.Level,
		Source:          q.Source,
		MessageContains: q.MessageContains,
		FileID:          q.FileID,
		LogType:         q.LogType,
		HasNetworkInfo:  q.HasNetworkInfo,
		Protocol:        q.Protocol,
		IPAddress:       q.IPAddress,
	}
	if q.StartTime != "" {
		ts, ok := extract.ISOTimestamp(q.StartTime)
		if !ok {
			return filter, errors.New("invalid start_time: expected ISO-8601 timestamp")
		}
		filter.StartTime = timePtr(ts)
	}
	if q.EndTime != "" {
		ts, ok := extract.ISOTimestamp(q.EndTime)
		if !ok {
			return filter, errors.New("invalid end_time: expected ISO-8601 timestamp")
		}
		filter.EndTime = timePtr(ts)
	}
	return filter, nil
}

func timePtr(t time.Time) *time.Time { return &t }
