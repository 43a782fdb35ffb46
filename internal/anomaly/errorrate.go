package anomaly

import (
	"context"
	"fmt"

	"github.com/logsieve/logsieve/internal/models"
)

// ErrorRateStrategy flags hourly buckets whose error fraction is both above
// an absolute floor and at least double the window's baseline.
type ErrorRateStrategy struct {
	// Threshold is the minimum error fraction considered anomalous.
	Threshold float64
}

func NewErrorRateStrategy() *ErrorRateStrategy {
	return &ErrorRateStrategy{Threshold: 0.10}
}

func (s *ErrorRateStrategy) Name() string { return "error-rate" }

func (s *ErrorRateStrategy) Detect(ctx context.Context, w Window) ([]models.Anomaly, error) {
	buckets := hourlyBuckets(w.Records)
	if len(buckets) == 0 {
		return nil, nil
	}

	totals := make([]int, len(buckets))
	errors := make([]int, len(buckets))
	rates := make([]float64, len(buckets))
	for i := range buckets {
		totals[i] = len(buckets[i].records)
		for _, record := range buckets[i].records {
			if isErrorLevel(record.Level, models.ErrorLevels) {
				errors[i]++
			}
		}
		rates[i] = float64(errors[i]) / (float64(totals[i]) + zEpsilon)
	}

	// Baseline excludes the newest bucket so a fresh incident cannot hide
	// itself.
	var baseline float64
	if len(rates) > 1 {
		baseline = mean(rates[:len(rates)-1])
	}

	var anomalies []models.Anomaly
	for i := range buckets {
		rate := rates[i]
		if rate <= s.Threshold || rate <= baseline*2 {
			continue
		}
		severity := models.SeverityHigh
		if rate > 0.5 {
			severity = models.SeverityCritical
		}

		anomalies = append(anomalies, models.Anomaly{
			Timestamp:         buckets[i].start,
			Type:              models.AnomalyHighErrorRate,
			Severity:          severity,
			Description:       fmt.Sprintf("High error rate detected: %.2f%% (%d errors out of %d logs)", rate*100, errors[i], totals[i]),
			AffectedTemplates: []string{},
			LogCount:          totals[i],
			Score:             rate,
			Details: map[string]any{
				"error_rate":    rate,
				"error_count":   errors[i],
				"total_count":   totals[i],
				"baseline_rate": baseline,
			},
		})
	}
	return anomalies, nil
}
