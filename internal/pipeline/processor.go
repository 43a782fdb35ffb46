package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/metrics"
	"github.com/logsieve/logsieve/internal/mining"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

// Processor is the ingestion pipeline: assembler, miner, storage, counters.
// All ingest surfaces (single entry, file upload, batch) funnel through it.
type Processor struct {
	assembler *Assembler
	miner     *mining.Miner
	store     storage.Storage
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

func NewProcessor(assembler *Assembler, miner *mining.Miner, store storage.Storage, m *metrics.Metrics) *Processor {
	return &Processor{
		assembler: assembler,
		miner:     miner,
		store:     store,
		metrics:   m,
		logger:    logging.GetLogger("pipeline.processor"),
	}
}

// IngestRecord mines a template for the record's message, fills the template
// fields, bumps the template row, and persists the record. Returns the stored
// ID and the miner's verdict.
func (p *Processor) IngestRecord(ctx context.Context, record *models.LogRecord) (string, mining.Result, error) {
	result, err := p.miner.Process(ctx, record.Message)
	if err != nil {
		// The line is still worth keeping when the miner is saturated.
		p.logger.Warn("Miner unavailable, using fallback template: %v", err)
		result = mining.Fallback(record.Message)
	}
	if strings.HasPrefix(result.TemplateID, "fallback_") {
		p.metrics.MinerFallbacks.Inc()
	}

	record.TemplateID = result.TemplateID
	record.Template = result.Template
	record.ClusterSize = int(result.ClusterSize)

	if err := p.store.UpsertTemplate(ctx, result.TemplateID, result.Template, result.ClusterSize, record.Timestamp); err != nil {
		// The record itself is the source of truth; a stale template row is
		// recoverable.
		p.logger.Warn("Could not update template row %s: %v", result.TemplateID, err)
		p.metrics.StorageErrors.Inc()
	}

	id, err := p.store.InsertRecord(ctx, record)
	if err != nil {
		p.metrics.StorageErrors.Inc()
		return "", result, err
	}
	p.metrics.LogsIngested.Inc()
	return id, result, nil
}

// IngestLine parses and ingests one raw line from an uploaded file or a batch.
// Returns false for lines that were skipped (blank) or failed to persist.
func (p *Processor) IngestLine(ctx context.Context, line, source, fileID, filename string) (bool, error) {
	record := p.assembler.ParseLine(line, source, time.Now().UTC())
	if record == nil {
		return false, nil
	}
	record.FileID = fileID
	record.Filename = filename

	if _, _, err := p.IngestRecord(ctx, record); err != nil {
		p.metrics.LinesFailed.Inc()
		return false, err
	}
	return true, nil
}
