package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/logsieve/logsieve/internal/models"
)

// RareTemplateStrategy flags templates that are historically rare but
// suddenly active: rarity comes from a 7-day count at or below the 5th
// percentile, activity from the last two hours exceeding three times the
// rarity threshold.
type RareTemplateStrategy struct {
	Percentile float64
	History    time.Duration
	Recent     time.Duration
}

func NewRareTemplateStrategy() *RareTemplateStrategy {
	return &RareTemplateStrategy{
		Percentile: 5,
		History:    7 * 24 * time.Hour,
		Recent:     2 * time.Hour,
	}
}

func (s *RareTemplateStrategy) Name() string { return "rare-template" }

func (s *RareTemplateStrategy) Detect(ctx context.Context, w Window) ([]models.Anomaly, error) {
	if len(w.Records) == 0 {
		return nil, nil
	}

	historical, err := w.Store.TemplateCountsSince(ctx, w.Now.Add(-s.History))
	if err != nil {
		return nil, err
	}
	if len(historical) == 0 {
		return nil, nil
	}

	counts := make([]float64, 0, len(historical))
	for _, c := range historical {
		counts = append(counts, float64(c))
	}
	threshold := percentile(counts, s.Percentile)
	if threshold <= 0 {
		return nil, nil
	}

	rare := make(map[string]bool)
	for id, c := range historical {
		if float64(c) <= threshold {
			rare[id] = true
		}
	}

	cutoff := w.Now.Add(-s.Recent)
	recentCounts := make(map[string]int)
	templateText := make(map[string]string)
	for i := range w.Records {
		record := &w.Records[i]
		if !rare[record.TemplateID] || record.Timestamp.Before(cutoff) {
			continue
		}
		recentCounts[record.TemplateID]++
		if _, ok := templateText[record.TemplateID]; !ok {
			templateText[record.TemplateID] = record.Template
		}
	}

	var anomalies []models.Anomaly
	for id, count := range recentCounts {
		if float64(count) <= threshold*3 {
			continue
		}
		template := templateText[id]
		truncated := template
		if len(truncated) > 100 {
			truncated = truncated[:100]
		}

		anomalies = append(anomalies, models.Anomaly{
			Timestamp:         w.Now,
			Type:              models.AnomalyRareTemplate,
			Severity:          models.SeverityMedium,
			Description:       fmt.Sprintf("Unusual activity in rare template: '%s...' (%d occurrences)", truncated, count),
			AffectedTemplates: []string{id},
			LogCount:          count,
			Score:             float64(count) / threshold,
			Details: map[string]any{
				"template_id":    id,
				"template":       template,
				"recent_count":   count,
				"historical_avg": float64(historical[id]),
				"rare_threshold": threshold,
			},
		})
	}
	return anomalies, nil
}
