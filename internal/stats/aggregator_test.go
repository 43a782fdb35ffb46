package stats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

func newTestAggregator(t *testing.T) (*Aggregator, *storage.RedisStorage) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := storage.NewRedisStorageWithClient(client, "test")
	return NewAggregator(store), store
}

func TestOverview(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 2, 12, 30, 0, 0, time.UTC)

	insert := func(r models.LogRecord) {
		_, err := store.InsertRecord(ctx, &r)
		require.NoError(t, err)
	}

	insert(models.LogRecord{Timestamp: now.Add(-time.Hour), Level: "ERROR", Source: "app", LogType: "syslog", Filename: "a.log"})
	insert(models.LogRecord{Timestamp: now.Add(-time.Hour), Level: "INFO", Source: "app", LogType: "syslog", Filename: "a.log"})
	insert(models.LogRecord{
		Timestamp: now.Add(-2 * time.Hour), Level: "INFO", Source: "fw", LogType: "firewall",
		Network: models.NetworkInfo{
			SrcIP:     "192.168.1.1",
			DstIP:     "10.0.0.1",
			Protocols: []string{"TCP"},
		},
	})
	// Outside the 24h activity window, still counted in totals.
	insert(models.LogRecord{Timestamp: now.Add(-48 * time.Hour), Level: "DEBUG", Source: "old"})

	require.NoError(t, store.UpsertTemplate(ctx, "1", "t", 1, now))

	overview, err := agg.Overview(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, int64(4), overview.TotalLogs)
	assert.Equal(t, int64(1), overview.TotalTemplates)
	assert.Equal(t, int64(0), overview.TotalFiles)

	require.NotEmpty(t, overview.LevelDistribution)
	assert.Equal(t, Row{Value: "INFO", Count: 2}, overview.LevelDistribution[0])

	assert.Equal(t, Row{Value: "app", Count: 2}, overview.TopSources[0])
	assert.Equal(t, Row{Value: "a.log", Count: 2}, overview.TopFiles[0])

	assert.Equal(t, int64(1), overview.NetworkStats.LogsWithNetworkInfo)
	assert.Equal(t, []Row{{Value: "TCP", Count: 1}}, overview.NetworkStats.TopProtocols)
	assert.Equal(t, 2, overview.NetworkStats.UniqueIPs)

	require.Len(t, overview.HourlyActivity, 2)
	assert.Equal(t, Row{Value: "2025-03-02 10:00", Count: 1}, overview.HourlyActivity[0])
	assert.Equal(t, Row{Value: "2025-03-02 11:00", Count: 2}, overview.HourlyActivity[1])
}

func TestFileStats(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertFile(ctx, &models.FileUpload{
		FileID:           "f1",
		OriginalFilename: "fw.log",
		UploadTimestamp:  now,
		Status:           models.FileStatusCompleted,
	}))

	insert := func(r models.LogRecord) {
		r.FileID = "f1"
		_, err := store.InsertRecord(ctx, &r)
		require.NoError(t, err)
	}
	insert(models.LogRecord{Timestamp: now.Add(-3 * time.Hour), Level: "WARNING", LogType: "firewall",
		Network: models.NetworkInfo{SrcIP: "1.1.1.1", DstIP: "2.2.2.2", Protocols: []string{"TCP"}}})
	insert(models.LogRecord{Timestamp: now.Add(-time.Hour), Level: "WARNING", LogType: "firewall",
		Network: models.NetworkInfo{SrcIP: "1.1.1.1", Protocols: []string{"UDP"}}})
	insert(models.LogRecord{Timestamp: now.Add(-2 * time.Hour), Level: "INFO"})

	stats, err := agg.FileStats(ctx, "f1")
	require.NoError(t, err)

	assert.Equal(t, "fw.log", stats.Filename)
	assert.Equal(t, int64(3), stats.TotalLogs)
	assert.Equal(t, Row{Value: "WARNING", Count: 2}, stats.LevelDistribution[0])
	assert.Equal(t, Row{Value: "firewall", Count: 2}, stats.LogTypeDistribution[0])
	assert.Equal(t, Row{Value: "unknown", Count: 1}, stats.LogTypeDistribution[1])

	assert.Equal(t, int64(2), stats.NetworkInfoStats.LogsWithNetworkInfo)
	assert.Equal(t, 2, stats.NetworkInfoStats.UniqueProtocols)
	assert.Equal(t, 2, stats.NetworkInfoStats.UniqueIPs)

	require.NotNil(t, stats.DateRange)
	assert.True(t, stats.DateRange.Earliest.Equal(now.Add(-3*time.Hour)))
	assert.True(t, stats.DateRange.Latest.Equal(now.Add(-time.Hour)))
}

func TestFileStatsNotFound(t *testing.T) {
	agg, _ := newTestAggregator(t)
	_, err := agg.FileStats(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
