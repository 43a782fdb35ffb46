package anomaly

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

// Window is the input to one detection cycle: the records of the analysis
// window (oldest first), the cycle instant, and a storage handle for
// strategies needing history beyond the window.
type Window struct {
	Records []models.LogRecord
	Now     time.Time
	Store   storage.Storage
}

// Strategy is one detection algorithm. Implementations are stateless; all
// cycle state lives in the Window.
type Strategy interface {
	Name() string
	Detect(ctx context.Context, w Window) ([]models.Anomaly, error)
}

// bucket is one hour of the window.
type bucket struct {
	start   time.Time
	records []*models.LogRecord
}

// hourlyBuckets resamples the window into contiguous hourly buckets from the
// first record's hour through the last. Hours with no records are present and
// empty, which the volume and silence strategies depend on.
func hourlyBuckets(records []models.LogRecord) []bucket {
	if len(records) == 0 {
		return nil
	}

	first := records[0].Timestamp.UTC().Truncate(time.Hour)
	last := first
	for i := range records {
		h := records[i].Timestamp.UTC().Truncate(time.Hour)
		if h.Before(first) {
			first = h
		}
		if h.After(last) {
			last = h
		}
	}

	n := int(last.Sub(first)/time.Hour) + 1
	buckets := make([]bucket, n)
	for i := range buckets {
		buckets[i].start = first.Add(time.Duration(i) * time.Hour)
	}
	for i := range records {
		idx := int(records[i].Timestamp.UTC().Truncate(time.Hour).Sub(first) / time.Hour)
		buckets[idx].records = append(buckets[idx].records, &records[i])
	}
	return buckets
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 standard deviation, matching rolling statistics
// conventions. Returns 0 for fewer than two values.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func isErrorLevel(level string, errorLevels []string) bool {
	for _, l := range errorLevels {
		if level == l {
			return true
		}
	}
	return false
}
