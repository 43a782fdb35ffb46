package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/logsieve/logsieve/internal/models"
)

// NewTemplateStrategy flags cycles where an unusual share of the template
// catalog first appeared inside the analysis window. The denominator is the
// full catalog, not just the window's templates, so a steady-state window
// does not look like a surge.
type NewTemplateStrategy struct {
	// Threshold is the new-template ratio above which the cycle is anomalous.
	Threshold float64

	// Lookback bounds how far back a first_seen still counts as new.
	Lookback time.Duration
}

func NewNewTemplateStrategy() *NewTemplateStrategy {
	return &NewTemplateStrategy{Threshold: 0.05, Lookback: 24 * time.Hour}
}

func (s *NewTemplateStrategy) Name() string { return "new-template" }

func (s *NewTemplateStrategy) Detect(ctx context.Context, w Window) ([]models.Anomaly, error) {
	if len(w.Records) == 0 {
		return nil, nil
	}

	templates, err := w.Store.GetTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, nil
	}

	cutoff := w.Now.Add(-s.Lookback)

	// Window occurrences per template, for the finding's log count.
	windowCounts := make(map[string]int)
	for i := range w.Records {
		windowCounts[w.Records[i].TemplateID]++
	}

	var fresh []models.Template
	for _, t := range templates {
		if !t.FirstSeen.Before(cutoff) {
			fresh = append(fresh, t)
		}
	}

	ratio := float64(len(fresh)) / float64(len(templates))
	if ratio <= s.Threshold {
		return nil, nil
	}

	severity := models.SeverityMedium
	if ratio > 0.2 {
		severity = models.SeverityHigh
	}

	affected := make([]string, 0, len(fresh))
	details := make([]map[string]any, 0, len(fresh))
	logCount := 0
	for _, t := range fresh {
		affected = append(affected, t.TemplateID)
		logCount += windowCounts[t.TemplateID]
		details = append(details, map[string]any{
			"template_id": t.TemplateID,
			"template":    t.Template,
			"count":       windowCounts[t.TemplateID],
			"first_seen":  t.FirstSeen.UTC().Format(time.RFC3339),
		})
	}

	return []models.Anomaly{{
		Timestamp:         w.Now,
		Type:              models.AnomalyNewTemplateSurge,
		Severity:          severity,
		Description:       fmt.Sprintf("Unusual number of new log templates: %d new templates (%.1f%% of total)", len(fresh), ratio*100),
		AffectedTemplates: affected,
		LogCount:          logCount,
		Score:             ratio,
		Details: map[string]any{
			"new_template_count":   len(fresh),
			"total_template_count": len(templates),
			"ratio":                ratio,
			"new_templates":        details,
		},
	}}, nil
}
