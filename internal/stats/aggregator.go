package stats

import (
	"context"
	"sort"
	"time"

	"github.com/logsieve/logsieve/internal/models"
	"github.com/logsieve/logsieve/internal/storage"
)

// Row is one histogram bucket in a statistics response.
type Row struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// NetworkStats summarizes network-bearing records for the overview.
type NetworkStats struct {
	LogsWithNetworkInfo int64 `json:"logs_with_network_info"`
	TopProtocols        []Row `json:"top_protocols"`
	UniqueIPs           int   `json:"unique_ips"`
}

// Overview is the corpus-wide statistics payload.
type Overview struct {
	TotalLogs           int64        `json:"total_logs"`
	TotalTemplates      int64        `json:"total_templates"`
	TotalFiles          int64        `json:"total_files"`
	LevelDistribution   []Row        `json:"level_distribution"`
	LogTypeDistribution []Row        `json:"log_type_distribution"`
	TopSources          []Row        `json:"top_sources"`
	TopFiles            []Row        `json:"top_files"`
	NetworkStats        NetworkStats `json:"network_stats"`
	HourlyActivity      []Row        `json:"hourly_activity"`
}

// FileNetworkStats summarizes network-bearing records of one file.
type FileNetworkStats struct {
	LogsWithNetworkInfo int64 `json:"logs_with_network_info"`
	UniqueProtocols     int   `json:"unique_protocols"`
	UniqueIPs           int   `json:"unique_ips"`
}

// DateRange is the event-time span of one file's records.
type DateRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// FileStats is the per-file statistics payload.
type FileStats struct {
	FileID              string           `json:"file_id"`
	Filename            string           `json:"filename"`
	TotalLogs           int64            `json:"total_logs"`
	LevelDistribution   []Row            `json:"level_distribution"`
	LogTypeDistribution []Row            `json:"log_type_distribution"`
	NetworkInfoStats    FileNetworkStats `json:"network_info_stats"`
	DateRange           *DateRange       `json:"date_range,omitempty"`
}

// Aggregator computes statistics payloads on demand. It holds no state of its
// own: totals and distributions come from storage counters, activity and
// network detail from a bounded scan of the last 24 hours.
type Aggregator struct {
	store storage.Storage
}

func NewAggregator(store storage.Storage) *Aggregator {
	return &Aggregator{store: store}
}

// Overview assembles the corpus-wide statistics payload.
func (a *Aggregator) Overview(ctx context.Context, now time.Time) (*Overview, error) {
	overview := &Overview{}
	var err error

	if overview.TotalLogs, err = a.store.CountRecords(ctx); err != nil {
		return nil, err
	}
	if overview.TotalTemplates, err = a.store.CountTemplates(ctx); err != nil {
		return nil, err
	}
	if overview.TotalFiles, err = a.store.CountFiles(ctx); err != nil {
		return nil, err
	}

	levels, err := a.store.LevelCounts(ctx)
	if err != nil {
		return nil, err
	}
	overview.LevelDistribution = sortedRows(levels, 0)

	logTypes, err := a.store.LogTypeCounts(ctx)
	if err != nil {
		return nil, err
	}
	overview.LogTypeDistribution = sortedRows(logTypes, 0)

	sources, err := a.store.SourceCounts(ctx)
	if err != nil {
		return nil, err
	}
	overview.TopSources = sortedRows(sources, 10)

	filenames, err := a.store.FilenameCounts(ctx)
	if err != nil {
		return nil, err
	}
	overview.TopFiles = sortedRows(filenames, 10)

	networkLogs, err := a.store.NetworkLogCount(ctx)
	if err != nil {
		return nil, err
	}
	overview.NetworkStats.LogsWithNetworkInfo = networkLogs

	// Hourly activity plus network detail come from one scan of the last day.
	recent, err := a.store.RecordsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	hourly := make(map[string]int64)
	protocols := make(map[string]int64)
	ips := make(map[string]struct{})
	for _, record := range recent {
		hourly[record.Timestamp.UTC().Format("2006-01-02 15:00")]++
		collectNetwork(&record.Network, protocols, ips)
	}

	overview.HourlyActivity = sortedRows(hourly, 0)
	sort.Slice(overview.HourlyActivity, func(i, j int) bool {
		return overview.HourlyActivity[i].Value < overview.HourlyActivity[j].Value
	})
	overview.NetworkStats.TopProtocols = sortedRows(protocols, 10)
	overview.NetworkStats.UniqueIPs = len(ips)

	return overview, nil
}

// FileStats assembles the per-file statistics payload. Returns
// storage.ErrNotFound for an unknown file.
func (a *Aggregator) FileStats(ctx context.Context, fileID string) (*FileStats, error) {
	file, err := a.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	records, err := a.store.RecordsByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	stats := &FileStats{
		FileID:    fileID,
		Filename:  file.OriginalFilename,
		TotalLogs: int64(len(records)),
	}

	levels := make(map[string]int64)
	logTypes := make(map[string]int64)
	protocols := make(map[string]int64)
	ips := make(map[string]struct{})

	for _, record := range records {
		levels[record.Level]++
		logType := record.LogType
		if logType == "" {
			logType = "unknown"
		}
		logTypes[logType]++

		if !record.Network.IsEmpty() {
			stats.NetworkInfoStats.LogsWithNetworkInfo++
			collectNetwork(&record.Network, protocols, ips)
		}

		if stats.DateRange == nil {
			stats.DateRange = &DateRange{Earliest: record.Timestamp, Latest: record.Timestamp}
		} else {
			if record.Timestamp.Before(stats.DateRange.Earliest) {
				stats.DateRange.Earliest = record.Timestamp
			}
			if record.Timestamp.After(stats.DateRange.Latest) {
				stats.DateRange.Latest = record.Timestamp
			}
		}
	}

	stats.LevelDistribution = sortedRows(levels, 0)
	stats.LogTypeDistribution = sortedRows(logTypes, 0)
	stats.NetworkInfoStats.UniqueProtocols = len(protocols)
	stats.NetworkInfoStats.UniqueIPs = len(ips)

	return stats, nil
}

func collectNetwork(network *models.NetworkInfo, protocols map[string]int64, ips map[string]struct{}) {
	if network.Protocol != "" {
		protocols[network.Protocol]++
	}
	for _, p := range network.Protocols {
		protocols[p]++
	}
	for _, addr := range []string{network.SrcIP, network.DstIP, network.IPAddress} {
		if addr != "" {
			ips[addr] = struct{}{}
		}
	}
	for _, addr := range network.IPAddresses {
		ips[addr] = struct{}{}
	}
}

// sortedRows turns a counter map into rows sorted by count descending, value
// ascending on ties. A limit of 0 keeps everything.
func sortedRows(counts map[string]int64, limit int) []Row {
	rows := make([]Row, 0, len(counts))
	for value, count := range counts {
		rows = append(rows, Row{Value: value, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Value < rows[j].Value
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
