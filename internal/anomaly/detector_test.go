package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsieve/logsieve/internal/metrics"
	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

func TestRunCyclePersistsFindings(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := storage.NewRedisStorageWithClient(client, "test")
	m := metrics.New(prometheus.NewRegistry(), nil)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Hour)

	for h := 24; h > 1; h-- {
		for i := 0; i < 10; i++ {
			_, err := store.InsertRecord(ctx, &models.LogRecord{
				Timestamp:  now.Add(-time.Duration(h) * time.Hour),
				Level:      "INFO",
				Source:     "app",
				TemplateID: "1",
			})
			require.NoError(t, err)
		}
	}
	for i := 0; i < 500; i++ {
		_, err := store.InsertRecord(ctx, &models.LogRecord{
			Timestamp:  now.Add(-time.Hour),
			Level:      "INFO",
			Source:     "app",
			TemplateID: "1",
		})
		require.NoError(t, err)
	}

	detector := NewDetector(store, m, 25*time.Hour)
	findings, err := detector.RunCycle(ctx)
	require.NoError(t, err)

	var spikes int
	for _, a := range findings {
		if a.Type == models.AnomalyVolumeSpike {
			spikes++
		}
	}
	assert.Equal(t, 1, spikes)

	stored, err := store.GetAnomalies(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, stored, len(findings))
	for _, a := range stored {
		assert.False(t, a.CreatedAt.IsZero())
	}
}

func TestRunCycleEmptyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := storage.NewRedisStorageWithClient(client, "test")
	m := metrics.New(prometheus.NewRegistry(), nil)

	findings, err := NewDetector(store, m, 24*time.Hour).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findings)
}
