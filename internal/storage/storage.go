package storage

import (
	"context"
	"errors"
	"time"

	"github.com/logsieve/logsieve/internal/models"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrStorageUnavailable wraps backend failures. Ingestion endpoints map it to
// a 5xx response; the detection cycle aborts and retries on the next interval.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Storage is the persistence boundary for records, templates, file-upload
// manifests, and anomalies. Implementations must isolate concurrent readers
// and writers and never block ingestion on slow queries.
type Storage interface {
	// InsertRecord persists a record and returns its storage-assigned ID.
	InsertRecord(ctx context.Context, record *models.LogRecord) (string, error)

	// FindRecords returns the total number of matches and one page of
	// records, newest first.
	FindRecords(ctx context.Context, filter models.QueryFilter, offset, limit int) (int64, []models.LogRecord, error)

	// RecordsSince returns all records with event time >= since, oldest
	// first. Used by the statistics aggregator and the anomaly detector.
	RecordsSince(ctx context.Context, since time.Time) ([]models.LogRecord, error)

	// RecordsByFile returns all records ingested from one uploaded file.
	RecordsByFile(ctx context.Context, fileID string) ([]models.LogRecord, error)

	CountRecords(ctx context.Context) (int64, error)

	// UpsertTemplate atomically creates or updates a template row: on insert
	// first_seen is set to now and count to 1; on update last_seen is
	// refreshed and count incremented.
	UpsertTemplate(ctx context.Context, templateID, template string, clusterSize int64, now time.Time) error

	// GetTemplates returns all templates ordered by count descending.
	GetTemplates(ctx context.Context) ([]models.Template, error)

	CountTemplates(ctx context.Context) (int64, error)

	// TemplateCountsSince returns per-template record counts over a
	// historical window, for rare-template detection.
	TemplateCountsSince(ctx context.Context, since time.Time) (map[string]int64, error)

	InsertFile(ctx context.Context, file *models.FileUpload) error

	// UpdateFile applies a patch to a manifest. Returns ErrNotFound when the
	// file does not exist.
	UpdateFile(ctx context.Context, fileID string, patch models.FileUploadPatch) error

	GetFile(ctx context.Context, fileID string) (*models.FileUpload, error)

	// GetFiles returns all manifests, newest upload first.
	GetFiles(ctx context.Context) ([]models.FileUpload, error)

	CountFiles(ctx context.Context) (int64, error)

	// InsertAnomaly appends a detection finding. Anomalies are never mutated.
	InsertAnomaly(ctx context.Context, anomaly *models.Anomaly) error

	// GetAnomalies returns anomalies with event time >= since, newest first.
	GetAnomalies(ctx context.Context, since time.Time) ([]models.Anomaly, error)

	// Distribution counters maintained at insert time, O(1) to read.
	LevelCounts(ctx context.Context) (map[string]int64, error)
	LogTypeCounts(ctx context.Context) (map[string]int64, error)
	SourceCounts(ctx context.Context) (map[string]int64, error)
	FilenameCounts(ctx context.Context) (map[string]int64, error)
	NetworkLogCount(ctx context.Context) (int64, error)

	// Ping verifies the backend is reachable, for health checks.
	Ping(ctx context.Context) error
}
