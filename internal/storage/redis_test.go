package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsieve/logsieve/internal/models"
)

func newTestStorage(t *testing.T) *RedisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStorageWithClient(client, "test")
}

func mustInsert(t *testing.T, s *RedisStorage, record models.LogRecord) string {
	t.Helper()
	id, err := s.InsertRecord(context.Background(), &record)
	require.NoError(t, err)
	return id
}

func TestInsertAndFindRecords(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mustInsert(t, s, models.LogRecord{
		Timestamp:  base,
		Level:      "ERROR",
		Message:    "Connection refused to db-01",
		Source:     "app-server",
		LogType:    "syslog",
		TemplateID: "1",
	})
	mustInsert(t, s, models.LogRecord{
		Timestamp:  base.Add(time.Minute),
		Level:      "INFO",
		Message:    "Request completed",
		Source:     "app-server",
		LogType:    "syslog",
		TemplateID: "2",
	})
	mustInsert(t, s, models.LogRecord{
		Timestamp:  base.Add(2 * time.Minute),
		Level:      "ERROR",
		Message:    "Connection refused to db-02",
		Source:     "worker",
		LogType:    "docker",
		TemplateID: "1",
	})

	total, records, err := s.FindRecords(ctx, models.QueryFilter{}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 3)
	// Newest first.
	assert.Equal(t, "Connection refused to db-02", records[0].Message)

	total, records, err = s.FindRecords(ctx, models.QueryFilter{TemplateID: "1"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)

	total, _, err = s.FindRecords(ctx, models.QueryFilter{Level: "ERROR", LogType: "docker"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// Substring filters are case-insensitive.
	total, _, err = s.FindRecords(ctx, models.QueryFilter{MessageContains: "connection REFUSED"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	total, _, err = s.FindRecords(ctx, models.QueryFilter{Source: "WORK"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestFindRecordsTimeRangeAndPagination(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		mustInsert(t, s, models.LogRecord{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Level:     "INFO",
			Message:   "tick",
		})
	}

	start := base.Add(2 * time.Hour)
	end := base.Add(6 * time.Hour)
	total, records, err := s.FindRecords(ctx, models.QueryFilter{StartTime: &start, EndTime: &end}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, records, 5)
	assert.True(t, records[0].Timestamp.Equal(end))

	total, page, err := s.FindRecords(ctx, models.QueryFilter{}, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	require.Len(t, page, 4)
	assert.True(t, page[0].Timestamp.Equal(base.Add(6*time.Hour)))

	_, page, err = s.FindRecords(ctx, models.QueryFilter{}, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestFindRecordsNetworkFilters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mustInsert(t, s, models.LogRecord{
		Timestamp: now,
		Level:     "WARNING",
		Message:   "blocked packet",
		Network: models.NetworkInfo{
			SrcIP:     "192.168.1.100",
			DstIP:     "10.0.0.5",
			Protocols: []string{"TCP"},
		},
	})
	mustInsert(t, s, models.LogRecord{
		Timestamp: now.Add(time.Second),
		Level:     "INFO",
		Message:   "plain line",
	})

	yes := true
	total, _, err := s.FindRecords(ctx, models.QueryFilter{HasNetworkInfo: &yes}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// A false filter does not narrow.
	no := false
	total, _, err = s.FindRecords(ctx, models.QueryFilter{HasNetworkInfo: &no}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	total, _, err = s.FindRecords(ctx, models.QueryFilter{Protocol: "tcp"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	total, _, err = s.FindRecords(ctx, models.QueryFilter{IPAddress: "10.0.0.5"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	total, _, err = s.FindRecords(ctx, models.QueryFilter{IPAddress: "8.8.8.8"}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestRecordsSinceOldestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mustInsert(t, s, models.LogRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Level:     "INFO",
			Message:   "m",
		})
	}

	records, err := s.RecordsSince(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].Timestamp.Before(records[2].Timestamp))
}

func TestUpsertTemplate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertTemplate(ctx, "1", "User <*> logged in", 1, t0))
	require.NoError(t, s.UpsertTemplate(ctx, "1", "User <*> logged in", 2, t0.Add(time.Hour)))
	require.NoError(t, s.UpsertTemplate(ctx, "2", "Disk <*> full", 1, t0.Add(2*time.Hour)))
	require.NoError(t, s.UpsertTemplate(ctx, "1", "User <*> logged in", 3, t0.Add(3*time.Hour)))

	templates, err := s.GetTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	// Count descending.
	assert.Equal(t, "1", templates[0].TemplateID)
	assert.Equal(t, int64(3), templates[0].Count)
	assert.Equal(t, int64(3), templates[0].ClusterSize)
	assert.True(t, templates[0].FirstSeen.Equal(t0))
	assert.True(t, templates[0].LastSeen.Equal(t0.Add(3*time.Hour)))

	n, err := s.CountTemplates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTemplateCountsSince(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mustInsert(t, s, models.LogRecord{Timestamp: base, Level: "INFO", TemplateID: "1"})
	mustInsert(t, s, models.LogRecord{Timestamp: base.Add(time.Hour), Level: "INFO", TemplateID: "1"})
	mustInsert(t, s, models.LogRecord{Timestamp: base.Add(2 * time.Hour), Level: "INFO", TemplateID: "2"})

	counts, err := s.TemplateCountsSince(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["1"])
	assert.Equal(t, int64(1), counts["2"])
}

func TestFileManifestLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertFile(ctx, &models.FileUpload{
		FileID:           "f1",
		Filename:         "f1_app.log",
		OriginalFilename: "app.log",
		FileSize:         1024,
		UploadTimestamp:  now,
		Status:           models.FileStatusProcessing,
	}))
	require.NoError(t, s.InsertFile(ctx, &models.FileUpload{
		FileID:          "f2",
		Filename:        "f2_fw.log",
		UploadTimestamp: now.Add(time.Minute),
		Status:          models.FileStatusProcessing,
	}))

	status := models.FileStatusCompleted
	processed := 42
	done := now.Add(2 * time.Minute)
	require.NoError(t, s.UpdateFile(ctx, "f1", models.FileUploadPatch{
		Status:        &status,
		ProcessedLogs: &processed,
		CompletedAt:   &done,
	}))

	file, err := s.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusCompleted, file.Status)
	assert.Equal(t, 42, file.ProcessedLogs)
	require.NotNil(t, file.CompletedAt)
	assert.Equal(t, "app.log", file.OriginalFilename)

	files, err := s.GetFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "f2", files[0].FileID)

	_, err = s.GetFile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateFile(ctx, "missing", models.FileUploadPatch{}), ErrNotFound)
}

func TestAnomalies(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertAnomaly(ctx, &models.Anomaly{
		Timestamp: base,
		Type:      models.AnomalyVolumeSpike,
		Severity:  models.SeverityHigh,
	}))
	require.NoError(t, s.InsertAnomaly(ctx, &models.Anomaly{
		Timestamp: base.Add(time.Hour),
		Type:      models.AnomalyHighErrorRate,
		Severity:  models.SeverityMedium,
	}))

	anomalies, err := s.GetAnomalies(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.AnomalyHighErrorRate, anomalies[0].Type)
	assert.NotEmpty(t, anomalies[0].ID)

	anomalies, err = s.GetAnomalies(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, anomalies, 2)
	assert.Equal(t, models.AnomalyHighErrorRate, anomalies[0].Type)
}

func TestDistributionCounters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mustInsert(t, s, models.LogRecord{Timestamp: now, Level: "ERROR", Source: "a", LogType: "syslog", Filename: "x.log"})
	mustInsert(t, s, models.LogRecord{Timestamp: now, Level: "ERROR", Source: "a", LogType: "syslog"})
	mustInsert(t, s, models.LogRecord{
		Timestamp: now, Level: "INFO", Source: "b",
		Network: models.NetworkInfo{SrcIP: "1.2.3.4"},
	})

	levels, err := s.LevelCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), levels["ERROR"])
	assert.Equal(t, int64(1), levels["INFO"])

	logTypes, err := s.LogTypeCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), logTypes["syslog"])
	assert.Equal(t, int64(1), logTypes["unknown"])

	sources, err := s.SourceCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sources["a"])

	filenames, err := s.FilenameCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), filenames["x.log"])

	networkLogs, err := s.NetworkLogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), networkLogs)

	total, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
