package anomaly

import (
	"context"
	"fmt"
	"math"

	"github.com/logsieve/logsieve/internal/models"
)

const zEpsilon = 1e-6

// VolumeStrategy flags hourly buckets whose record count deviates from the
// rolling statistics of the preceding buckets. Using only prior buckets keeps
// a spike from inflating its own baseline.
type VolumeStrategy struct {
	// Threshold is the z-score above which a bucket is anomalous.
	Threshold float64
}

func NewVolumeStrategy() *VolumeStrategy {
	return &VolumeStrategy{Threshold: 3.0}
}

func (s *VolumeStrategy) Name() string { return "volume" }

func (s *VolumeStrategy) Detect(ctx context.Context, w Window) ([]models.Anomaly, error) {
	buckets := hourlyBuckets(w.Records)
	if len(buckets) < 3 {
		return nil, nil
	}

	counts := make([]float64, len(buckets))
	for i := range buckets {
		counts[i] = float64(len(buckets[i].records))
	}

	window := len(buckets) - 1
	if window > 24 {
		window = 24
	}

	var anomalies []models.Anomaly
	for i := window; i < len(buckets); i++ {
		prior := counts[i-window : i]
		m := mean(prior)
		std := sampleStd(prior)
		z := (counts[i] - m) / (std + zEpsilon)

		if math.Abs(z) <= s.Threshold {
			continue
		}

		kind := models.AnomalyVolumeSpike
		word := "spike"
		if z < 0 {
			kind = models.AnomalyVolumeDrop
			word = "drop"
		}
		severity := models.SeverityMedium
		if math.Abs(z) > 5 {
			severity = models.SeverityHigh
		}
		count := int(counts[i])

		anomalies = append(anomalies, models.Anomaly{
			Timestamp:         buckets[i].start,
			Type:              kind,
			Severity:          severity,
			Description:       fmt.Sprintf("Unusual %s in log volume: %d logs (z-score: %.2f)", word, count, z),
			AffectedTemplates: []string{},
			LogCount:          count,
			Score:             math.Abs(z),
			Details: map[string]any{
				"z_score":        z,
				"expected_range": fmt.Sprintf("%.1f ± %.1f", m, std),
				"actual_count":   count,
			},
		})
	}
	return anomalies, nil
}
