package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/models"
)

// RedisStorage persists records, templates, manifests, and anomalies in
// Redis. Records are JSON blobs addressed by ID, with a time-ordered zset and
// secondary index sets per template, severity, and file so query latency
// follows filter selectivity rather than corpus size. Distribution counters
// are maintained at insert time.
//
// Implements Storage and lifecycle.Component.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

// NewRedisStorage connects to the Redis instance at url. The database name
// becomes the key prefix, isolating multiple deployments on one instance.
func NewRedisStorage(url, database string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid storage URL: %w", err)
	}
	return &RedisStorage{
		client: redis.NewClient(opts),
		prefix: database,
		logger: logging.GetLogger("storage.redis"),
	}, nil
}

// NewRedisStorageWithClient wraps an existing client. Used by tests.
func NewRedisStorageWithClient(client *redis.Client, database string) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: database,
		logger: logging.GetLogger("storage.redis"),
	}
}

// Start verifies connectivity. Implements lifecycle.Component.
func (s *RedisStorage) Start(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	s.logger.Info("Connected to Redis (prefix %q)", s.prefix)
	return nil
}

// Stop closes the connection pool. Implements lifecycle.Component.
func (s *RedisStorage) Stop(ctx context.Context) error {
	return s.client.Close()
}

// Name implements lifecycle.Component.
func (s *RedisStorage) Name() string {
	return "storage"
}

// Ping checks the backend.
func (s *RedisStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStorage) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStorage) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// InsertRecord persists a record and maintains all indices and counters in
// one transaction.
func (s *RedisStorage) InsertRecord(ctx context.Context, record *models.LogRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	logType := record.LogType
	if logType == "" {
		logType = "unknown"
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("log", record.ID), data, 0)
		pipe.ZAdd(ctx, s.key("logs", "by_time"), redis.Z{
			Score:  float64(record.Timestamp.UnixMilli()),
			Member: record.ID,
		})
		if record.TemplateID != "" {
			pipe.SAdd(ctx, s.key("logs", "template", record.TemplateID), record.ID)
		}
		if record.FileID != "" {
			pipe.SAdd(ctx, s.key("logs", "file", record.FileID), record.ID)
		}
		pipe.SAdd(ctx, s.key("logs", "severity", record.Level), record.ID)

		pipe.HIncrBy(ctx, s.key("stats", "levels"), record.Level, 1)
		pipe.HIncrBy(ctx, s.key("stats", "logtypes"), logType, 1)
		if record.Source != "" {
			pipe.HIncrBy(ctx, s.key("stats", "sources"), record.Source, 1)
		}
		if record.Filename != "" {
			pipe.HIncrBy(ctx, s.key("stats", "filenames"), record.Filename, 1)
		}
		if !record.Network.IsEmpty() {
			pipe.Incr(ctx, s.key("stats", "network_logs"))
		}
		return nil
	})
	if err != nil {
		return "", s.wrap(err)
	}
	return record.ID, nil
}

// fetchRecords resolves record IDs to records, skipping IDs whose blobs have
// disappeared. Order follows the input.
func (s *RedisStorage) fetchRecords(ctx context.Context, ids []string) ([]models.LogRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("log", id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	records := make([]models.LogRecord, 0, len(values))
	for _, value := range values {
		str, ok := value.(string)
		if !ok {
			continue
		}
		var record models.LogRecord
		if err := json.Unmarshal([]byte(str), &record); err != nil {
			s.logger.Warn("Skipping undecodable record: %v", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// FindRecords picks the most selective index for the filter, applies the
// remaining constraints in memory, and returns one page newest first.
func (s *RedisStorage) FindRecords(ctx context.Context, filter models.QueryFilter, offset, limit int) (int64, []models.LogRecord, error) {
	ids, err := s.candidateIDs(ctx, filter)
	if err != nil {
		return 0, nil, err
	}

	records, err := s.fetchRecords(ctx, ids)
	if err != nil {
		return 0, nil, err
	}

	matched := records[:0]
	for _, record := range records {
		if matchesFilter(&record, filter) {
			matched = append(matched, record)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return total, []models.LogRecord{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return total, matched[offset:end], nil
}

// candidateIDs narrows the search space using the most selective available
// index: template > file > severity > time range > full corpus.
func (s *RedisStorage) candidateIDs(ctx context.Context, filter models.QueryFilter) ([]string, error) {
	switch {
	case filter.TemplateID != "":
		ids, err := s.client.SMembers(ctx, s.key("logs", "template", filter.TemplateID)).Result()
		return ids, s.wrap(err)
	case filter.FileID != "":
		ids, err := s.client.SMembers(ctx, s.key("logs", "file", filter.FileID)).Result()
		return ids, s.wrap(err)
	case filter.Level != "":
		ids, err := s.client.SMembers(ctx, s.key("logs", "severity", filter.Level)).Result()
		return ids, s.wrap(err)
	case filter.StartTime != nil || filter.EndTime != nil:
		min, max := "-inf", "+inf"
		if filter.StartTime != nil {
			min = strconv.FormatInt(filter.StartTime.UnixMilli(), 10)
		}
		if filter.EndTime != nil {
			max = strconv.FormatInt(filter.EndTime.UnixMilli(), 10)
		}
		ids, err := s.client.ZRevRangeByScore(ctx, s.key("logs", "by_time"), &redis.ZRangeBy{
			Min: min, Max: max,
		}).Result()
		return ids, s.wrap(err)
	default:
		ids, err := s.client.ZRevRange(ctx, s.key("logs", "by_time"), 0, -1).Result()
		return ids, s.wrap(err)
	}
}

// RecordsSince returns records with event time >= since, oldest first.
func (s *RedisStorage) RecordsSince(ctx context.Context, since time.Time) ([]models.LogRecord, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.key("logs", "by_time"), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.fetchRecords(ctx, ids)
}

// RecordsByFile returns all records for one uploaded file.
func (s *RedisStorage) RecordsByFile(ctx context.Context, fileID string) ([]models.LogRecord, error) {
	ids, err := s.client.SMembers(ctx, s.key("logs", "file", fileID)).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.fetchRecords(ctx, ids)
}

func (s *RedisStorage) CountRecords(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key("logs", "by_time")).Result()
	return n, s.wrap(err)
}

// UpsertTemplate atomically creates or bumps a template row. HSETNX seeds
// first_seen only on insert; HINCRBY carries the count.
func (s *RedisStorage) UpsertTemplate(ctx context.Context, templateID, template string, clusterSize int64, now time.Time) error {
	tkey := s.key("template", templateID)
	stamp := now.UTC().Format(time.RFC3339Nano)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.key("templates"), templateID)
		pipe.HSetNX(ctx, tkey, "first_seen", stamp)
		pipe.HIncrBy(ctx, tkey, "count", 1)
		pipe.HSet(ctx, tkey,
			"template", template,
			"cluster_size", strconv.FormatInt(clusterSize, 10),
			"last_seen", stamp,
		)
		return nil
	})
	return s.wrap(err)
}

// GetTemplates returns all templates ordered by count descending.
func (s *RedisStorage) GetTemplates(ctx context.Context) ([]models.Template, error) {
	ids, err := s.client.SMembers(ctx, s.key("templates")).Result()
	if err != nil {
		return nil, s.wrap(err)
	}

	templates := make([]models.Template, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, s.key("template", id)).Result()
		if err != nil {
			return nil, s.wrap(err)
		}
		if len(fields) == 0 {
			continue
		}
		templates = append(templates, decodeTemplate(id, fields))
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Count > templates[j].Count
	})
	return templates, nil
}

func decodeTemplate(id string, fields map[string]string) models.Template {
	t := models.Template{TemplateID: id, Template: fields["template"]}
	t.Count, _ = strconv.ParseInt(fields["count"], 10, 64)
	t.ClusterSize, _ = strconv.ParseInt(fields["cluster_size"], 10, 64)
	if ts, err := time.Parse(time.RFC3339Nano, fields["first_seen"]); err == nil {
		t.FirstSeen = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["last_seen"]); err == nil {
		t.LastSeen = ts
	}
	return t
}

func (s *RedisStorage) CountTemplates(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key("templates")).Result()
	return n, s.wrap(err)
}

// TemplateCountsSince tallies records per template over a historical window.
func (s *RedisStorage) TemplateCountsSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	records, err := s.RecordsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, record := range records {
		if record.TemplateID != "" {
			counts[record.TemplateID]++
		}
	}
	return counts, nil
}

// InsertFile stores a new upload manifest.
func (s *RedisStorage) InsertFile(ctx context.Context, file *models.FileUpload) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal file manifest: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("file", file.FileID), data, 0)
		pipe.ZAdd(ctx, s.key("files", "by_upload"), redis.Z{
			Score:  float64(file.UploadTimestamp.UnixMilli()),
			Member: file.FileID,
		})
		return nil
	})
	return s.wrap(err)
}

// UpdateFile applies a patch to an existing manifest.
func (s *RedisStorage) UpdateFile(ctx context.Context, fileID string, patch models.FileUploadPatch) error {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if patch.Status != nil {
		file.Status = *patch.Status
	}
	if patch.ProcessedLogs != nil {
		file.ProcessedLogs = *patch.ProcessedLogs
	}
	if patch.FailedLogs != nil {
		file.FailedLogs = *patch.FailedLogs
	}
	if patch.Error != nil {
		file.Error = *patch.Error
	}
	if patch.CompletedAt != nil {
		file.CompletedAt = patch.CompletedAt
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal file manifest: %w", err)
	}
	return s.wrap(s.client.Set(ctx, s.key("file", fileID), data, 0).Err())
}

// GetFile fetches one manifest. Returns ErrNotFound for unknown IDs.
func (s *RedisStorage) GetFile(ctx context.Context, fileID string) (*models.FileUpload, error) {
	data, err := s.client.Get(ctx, s.key("file", fileID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return nil, s.wrap(err)
	}
	var file models.FileUpload
	if err := json.Unmarshal([]byte(data), &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file manifest: %w", err)
	}
	return &file, nil
}

// GetFiles returns all manifests, newest upload first.
func (s *RedisStorage) GetFiles(ctx context.Context) ([]models.FileUpload, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("files", "by_upload"), 0, -1).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	files := make([]models.FileUpload, 0, len(ids))
	for _, id := range ids {
		file, err := s.GetFile(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, nil
}

func (s *RedisStorage) CountFiles(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key("files", "by_upload")).Result()
	return n, s.wrap(err)
}

// InsertAnomaly appends a detection finding.
func (s *RedisStorage) InsertAnomaly(ctx context.Context, anomaly *models.Anomaly) error {
	if anomaly.ID == "" {
		anomaly.ID = uuid.NewString()
	}
	data, err := json.Marshal(anomaly)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("anomaly", anomaly.ID), data, 0)
		pipe.ZAdd(ctx, s.key("anomalies", "by_time"), redis.Z{
			Score:  float64(anomaly.Timestamp.UnixMilli()),
			Member: anomaly.ID,
		})
		pipe.SAdd(ctx, s.key("anomalies", "severity", anomaly.Severity), anomaly.ID)
		return nil
	})
	return s.wrap(err)
}

// GetAnomalies returns anomalies with event time >= since, newest first.
func (s *RedisStorage) GetAnomalies(ctx context.Context, since time.Time) ([]models.Anomaly, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, s.key("anomalies", "by_time"), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	anomalies := make([]models.Anomaly, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, s.key("anomaly", id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, s.wrap(err)
		}
		var anomaly models.Anomaly
		if err := json.Unmarshal([]byte(data), &anomaly); err != nil {
			continue
		}
		anomalies = append(anomalies, anomaly)
	}
	return anomalies, nil
}

func (s *RedisStorage) LevelCounts(ctx context.Context) (map[string]int64, error) {
	return s.counterHash(ctx, s.key("stats", "levels"))
}

func (s *RedisStorage) LogTypeCounts(ctx context.Context) (map[string]int64, error) {
	return s.counterHash(ctx, s.key("stats", "logtypes"))
}

func (s *RedisStorage) SourceCounts(ctx context.Context) (map[string]int64, error) {
	return s.counterHash(ctx, s.key("stats", "sources"))
}

func (s *RedisStorage) FilenameCounts(ctx context.Context) (map[string]int64, error) {
	return s.counterHash(ctx, s.key("stats", "filenames"))
}

func (s *RedisStorage) NetworkLogCount(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.key("stats", "network_logs")).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, s.wrap(err)
}

func (s *RedisStorage) counterHash(ctx context.Context, key string) (map[string]int64, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	counts := make(map[string]int64, len(fields))
	for field, value := range fields {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		counts[field] = n
	}
	return counts, nil
}
