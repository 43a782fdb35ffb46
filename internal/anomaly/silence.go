package anomaly

import (
	"context"
	"fmt"

	"github.com/logsieve/logsieve/internal/models"
)

// SilenceStrategy flags sources that stopped emitting: zero records in the
// last two hours from a source that historically averaged more than five
// records per hour.
type SilenceStrategy struct {
	SilentHours int
	MinTotal    int
	MinHourly   float64
}

func NewSilenceStrategy() *SilenceStrategy {
	return &SilenceStrategy{SilentHours: 2, MinTotal: 10, MinHourly: 5}
}

func (s *SilenceStrategy) Name() string { return "source-silence" }

func (s *SilenceStrategy) Detect(ctx context.Context, w Window) ([]models.Anomaly, error) {
	buckets := hourlyBuckets(w.Records)
	if len(buckets) <= s.SilentHours {
		return nil, nil
	}

	// Per-source counts over the shared contiguous hour axis.
	perSource := make(map[string][]int)
	for i, b := range buckets {
		for _, record := range b.records {
			counts, ok := perSource[record.Source]
			if !ok {
				counts = make([]int, len(buckets))
				perSource[record.Source] = counts
			}
			counts[i]++
		}
	}

	var anomalies []models.Anomaly
	for source, counts := range perSource {
		total := 0
		for _, c := range counts {
			total += c
		}
		if total < s.MinTotal {
			continue
		}

		recent := 0
		for _, c := range counts[len(counts)-s.SilentHours:] {
			recent += c
		}
		earlier := counts[:len(counts)-s.SilentHours]
		var historicalAvg float64
		if len(earlier) > 0 {
			sum := 0
			for _, c := range earlier {
				sum += c
			}
			historicalAvg = float64(sum) / float64(len(earlier))
		}

		if recent != 0 || historicalAvg <= s.MinHourly {
			continue
		}

		anomalies = append(anomalies, models.Anomaly{
			Timestamp:         w.Now,
			Type:              models.AnomalySourceSilence,
			Severity:          models.SeverityMedium,
			Description:       fmt.Sprintf("Source '%s' has gone silent (usually produces %.1f logs/hour)", source, historicalAvg),
			AffectedTemplates: []string{},
			LogCount:          0,
			Score:             historicalAvg,
			Details: map[string]any{
				"source":         source,
				"historical_avg": historicalAvg,
				"silent_hours":   s.SilentHours,
			},
		})
	}
	return anomalies, nil
}
