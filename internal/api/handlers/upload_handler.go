package handlers

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/logsieve/logsieve/internal/api/response"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/pipeline"
	"github.com/logsieve/logsieve/internal/storage"
)

// maxLineBytes bounds a single scanned line. Longer lines fail instead of
// aborting the whole file.
const maxLineBytes = 1024 * 1024

// UploadHandler handles /api/logs/upload multipart requests. The file is
// staged on disk under a unique name, a manifest row tracks progress, and
// every line is ingested independently.
type UploadHandler struct {
	processor *pipeline.Processor
	store     storage.Storage
	uploadDir string
	logger    *logging.Logger
}

// NewUploadHandler creates a new handler
func NewUploadHandler(processor *pipeline.Processor, store storage.Storage, uploadDir string, logger *logging.Logger) *UploadHandler {
	return &UploadHandler{
		processor: processor,
		store:     store,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Handle processes a log file upload
func (h *UploadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	part, header, err := r.FormFile("file")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing file field: "+err.Error())
		return
	}
	defer part.Close()

	originalName := header.Filename
	if !hasSupportedExtension(originalName) {
		response.WriteError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported file format")
		return
	}

	fileID := uuid.New().String()
	storedName := fileID + "_" + filepath.Base(originalName)
	storedPath := filepath.Join(h.uploadDir, storedName)

	size, err := h.stage(part, storedPath)
	if err != nil {
		h.logger.Error("Failed to stage upload %s: %v", originalName, err)
		response.WriteError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "could not store uploaded file")
		return
	}

	manifest := &models.FileUpload{
		FileID:           fileID,
		Filename:         storedName,
		OriginalFilename: originalName,
		FileSize:         size,
		UploadTimestamp:  time.Now().UTC(),
		Status:           models.FileStatusProcessing,
	}
	if err := h.store.InsertFile(r.Context(), manifest); err != nil {
		h.logger.Error("Failed to record upload manifest: %v", err)
		response.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
		return
	}

	processed, failed, err := h.ingestFile(r, storedPath, fileID, originalName)
	if err != nil {
		h.patchManifest(r, fileID, models.FileStatusFailed, processed, failed, err.Error())
		response.WriteError(w, http.StatusInternalServerError, "PROCESSING_FAILED", err.Error())
		return
	}

	h.patchManifest(r, fileID, models.FileStatusCompleted, processed, failed, "")

	h.logger.Info("Processed upload %s (%s): %d ok, %d failed", originalName, fileID, processed, failed)
	_ = response.WriteSuccess(w, map[string]any{
		"message":        "File processed successfully",
		"file_id":        fileID,
		"filename":       originalName,
		"processed_logs": processed,
		"failed_logs":    failed,
		"file_size":      size,
	})
}

// stage copies the uploaded part to its unique on-disk location.
func (h *UploadHandler) stage(part io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	return io.Copy(dst, part)
}

// ingestFile runs the staged file through the pipeline line by line. A line
// that fails to parse or persist increments the failed count; only request
// cancellation aborts the loop.
func (h *UploadHandler) ingestFile(r *http.Request, path, fileID, originalName string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	ctx := r.Context()
	processed := 0
	failed := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}
		ok, err := h.processor.IngestLine(ctx, scanner.Text(), originalName, fileID, originalName)
		if err != nil {
			h.logger.Warn("Line from %s failed: %v", originalName, err)
		}
		if ok {
			processed++
		} else {
			failed++
		}
	}
	if err := scanner.Err(); err != nil {
		return processed, failed, err
	}
	return processed, failed, nil
}

func (h *UploadHandler) patchManifest(r *http.Request, fileID, status string, processed, failed int, errMsg string) {
	now := time.Now().UTC()
	patch := models.FileUploadPatch{
		Status:        &status,
		ProcessedLogs: &processed,
		FailedLogs:    &failed,
		CompletedAt:   &now,
	}
	if errMsg != "" {
		patch.Error = &errMsg
	}
	// The request context may already be cancelled; the manifest update must
	// still go through.
	if err := h.store.UpdateFile(context.WithoutCancel(r.Context()), fileID, patch); err != nil {
		h.logger.Error("Failed to update manifest %s: %v", fileID, err)
	}
}

func hasSupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".log", ".txt", ".json":
		return true
	}
	return false
}
