package anomaly

import (
	"context"
	"time"

	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/metrics"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

// Detector runs all strategies over one analysis window and appends the
// findings to storage.
type Detector struct {
	store      storage.Storage
	strategies []Strategy
	metrics    *metrics.Metrics
	window     time.Duration
	logger     *logging.Logger
}

// NewDetector creates a detector with the full strategy set over the given
// analysis window.
func NewDetector(store storage.Storage, m *metrics.Metrics, window time.Duration) *Detector {
	return &Detector{
		store: store,
		strategies: []Strategy{
			NewVolumeStrategy(),
			NewErrorRateStrategy(),
			NewNewTemplateStrategy(),
			NewRareTemplateStrategy(),
			NewMLStrategy(),
			NewSilenceStrategy(),
		},
		metrics: m,
		window:  window,
		logger:  logging.GetLogger("anomaly.detector"),
	}
}

// RunCycle executes one detection cycle. A failing strategy is logged and
// skipped; the rest still run. Findings are persisted before returning.
func (d *Detector) RunCycle(ctx context.Context) ([]models.Anomaly, error) {
	now := time.Now().UTC()
	records, err := d.store.RecordsSince(ctx, now.Add(-d.window))
	if err != nil {
		d.metrics.StorageErrors.Inc()
		return nil, err
	}
	d.logger.Info("Analyzing %d logs", len(records))

	w := Window{Records: records, Now: now, Store: d.store}

	var findings []models.Anomaly
	for _, strategy := range d.strategies {
		anomalies, err := strategy.Detect(ctx, w)
		if err != nil {
			d.logger.Error("Strategy %s failed: %v", strategy.Name(), err)
			continue
		}
		d.logger.Info("Found %d %s anomalies", len(anomalies), strategy.Name())
		findings = append(findings, anomalies...)
	}

	for i := range findings {
		findings[i].CreatedAt = now
		if err := d.store.InsertAnomaly(ctx, &findings[i]); err != nil {
			d.logger.Error("Could not store anomaly: %v", err)
			d.metrics.StorageErrors.Inc()
			continue
		}
		d.metrics.Anomalies.WithLabelValues(findings[i].Type).Inc()
		d.logger.Info("Stored anomaly: %s - %s", findings[i].Type, findings[i].Description)
	}

	d.metrics.Cycles.Inc()
	return findings, nil
}
