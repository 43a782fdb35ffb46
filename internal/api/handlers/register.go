package handlers

import (
	"net/http"

	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/mining"
	"github.com/logsieve/logsieve/internal/pipeline"
	"github.com/logsieve/logsieve/internal/stats"
	"github.com/logsieve/logsieve/internal/storage"
)

// RegisterHandlers registers all HTTP handlers on the given router
func RegisterHandlers(
	router *http.ServeMux,
	processor *pipeline.Processor,
	store storage.Storage,
	aggregator *stats.Aggregator,
	miner *mining.Miner,
	uploadDir string,
	logger *logging.Logger,
	withMethod func(string, http.HandlerFunc) http.HandlerFunc,
) {
	uploadHandler := NewUploadHandler(processor, store, uploadDir, logger)
	ingestHandler := NewIngestHandler(processor, logger)
	fluentBitHandler := NewFluentBitHandler(processor, logger)
	queryHandler := NewQueryHandler(store, logger)
	templateHandler := NewTemplateHandler(store, logger)
	statsHandler := NewStatsHandler(aggregator, logger)
	fileHandler := NewFileHandler(store, aggregator, logger)
	healthHandler := NewHealthHandler(store, miner, logger)

	router.HandleFunc("/api/logs/upload", withMethod(http.MethodPost, uploadHandler.Handle))
	router.HandleFunc("/api/logs/ingest", withMethod(http.MethodPost, ingestHandler.Handle))
	router.HandleFunc("/api/logs/ingest/fluent-bit", withMethod(http.MethodPost, fluentBitHandler.Handle))
	router.HandleFunc("/api/logs/query", withMethod(http.MethodPost, queryHandler.Handle))
	router.HandleFunc("/api/templates", withMethod(http.MethodGet, templateHandler.Handle))
	router.HandleFunc("/api/stats", withMethod(http.MethodGet, statsHandler.Handle))
	router.HandleFunc("/api/files", withMethod(http.MethodGet, fileHandler.HandleList))
	router.HandleFunc("/api/files/", withMethod(http.MethodGet, fileHandler.HandleStats))
	router.HandleFunc("/api/health", withMethod(http.MethodGet, healthHandler.Handle))
	router.HandleFunc("/", RootHandler)
}
