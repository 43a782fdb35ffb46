package anomaly

import (
	"context"
	"fmt"
	"math"

	"github.com/logsieve/logsieve/internal/models"
)

// mlErrorLevels is the error set used for the feature vector; WARN is
// deliberately excluded here, unlike the error-rate strategy.
var mlErrorLevels = []string{models.LevelError, models.LevelCritical, "FATAL"}

var mlFeatureNames = []string{
	"count", "error_count", "unique_templates", "unique_sources", "hour", "day_of_week",
}

// MLStrategy scores standardized hourly feature vectors with a deterministic
// isolation forest and flags the negative-decision buckets.
type MLStrategy struct {
	Contamination float64
	Seed          int64
	MinRecords    int
	MinBuckets    int
	Trees         int
}

func NewMLStrategy() *MLStrategy {
	return &MLStrategy{
		Contamination: 0.10,
		Seed:          42,
		MinRecords:    100,
		MinBuckets:    24,
		Trees:         100,
	}
}

func (s *MLStrategy) Name() string { return "ml-outlier" }

func (s *MLStrategy) Detect(ctx context.Context, w Window) ([]models.Anomaly, error) {
	if len(w.Records) < s.MinRecords {
		return nil, nil
	}
	buckets := hourlyBuckets(w.Records)
	if len(buckets) < s.MinBuckets {
		return nil, nil
	}

	raw := make([][]float64, len(buckets))
	for i, b := range buckets {
		raw[i] = featureVector(b)
	}

	X := standardize(raw)

	forest := newIsolationForest(s.Trees, s.Contamination, s.Seed)
	forest.Fit(X)

	var anomalies []models.Anomaly
	for i, x := range X {
		decision := forest.DecisionFunction(x)
		if decision >= 0 {
			continue
		}
		score := math.Abs(decision)
		severity := models.SeverityMedium
		if score > 0.5 {
			severity = models.SeverityHigh
		}

		features := make(map[string]any, len(mlFeatureNames))
		for j, name := range mlFeatureNames {
			features[name] = raw[i][j]
		}

		anomalies = append(anomalies, models.Anomaly{
			Timestamp:         buckets[i].start,
			Type:              models.AnomalyMLDetected,
			Severity:          severity,
			Description:       fmt.Sprintf("ML model detected anomalous log pattern (score: %.3f)", score),
			AffectedTemplates: []string{},
			LogCount:          int(raw[i][0]),
			Score:             score,
			Details: map[string]any{
				"ml_score": decision,
				"features": features,
				"seed":     s.Seed,
			},
		})
	}
	return anomalies, nil
}

// featureVector summarizes one hourly bucket. Empty buckets are all zeros,
// including the time-of-day features.
func featureVector(b bucket) []float64 {
	if len(b.records) == 0 {
		return make([]float64, len(mlFeatureNames))
	}

	var errorCount float64
	templates := make(map[string]struct{})
	sources := make(map[string]struct{})
	for _, record := range b.records {
		if isErrorLevel(record.Level, mlErrorLevels) {
			errorCount++
		}
		templates[record.TemplateID] = struct{}{}
		sources[record.Source] = struct{}{}
	}

	// Monday is day 0.
	dow := (int(b.start.Weekday()) + 6) % 7

	return []float64{
		float64(len(b.records)),
		errorCount,
		float64(len(templates)),
		float64(len(sources)),
		float64(b.start.Hour()),
		float64(dow),
	}
}

// standardize centers each column and scales by its population standard
// deviation. Constant columns are left centered only.
func standardize(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	dims := len(X[0])
	means := make([]float64, dims)
	stds := make([]float64, dims)

	for d := 0; d < dims; d++ {
		var sum float64
		for _, x := range X {
			sum += x[d]
		}
		means[d] = sum / float64(len(X))

		var sq float64
		for _, x := range X {
			diff := x[d] - means[d]
			sq += diff * diff
		}
		stds[d] = math.Sqrt(sq / float64(len(X)))
		if stds[d] == 0 {
			stds[d] = 1
		}
	}

	out := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, dims)
		for d := 0; d < dims; d++ {
			row[d] = (x[d] - means[d]) / stds[d]
		}
		out[i] = row
	}
	return out
}
