package handlers

import (
	"errors"
	"net/http"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/storage"
)

// TemplateHandler handles /api/templates requests
type TemplateHandler struct {
	store  storage.Storage
	logger *logging.Logger
}

// NewTemplateHandler creates a new handler
func NewTemplateHandler(store storage.Storage, logger *logging.Logger) *TemplateHandler {
	return &TemplateHandler{store: store, logger: logger}
}

// Handle returns the template catalog, most frequent first
func (h *TemplateHandler) Handle(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.GetTemplates(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch templates: %v", err)
		if errors.Is(err, storage.ErrStorageUnavailable) {
			response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	_ = response.WriteSuccess(w, templates)
}
