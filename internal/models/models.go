package models

import "time"

// Log severity levels, ordered from most to least severe.
// These mirror the syslog severity ladder.
const (
	LevelEmergency = "EMERGENCY"
	LevelAlert     = "ALERT"
	LevelCritical  = "CRITICAL"
	LevelError     = "ERROR"
	LevelWarn      = "WARN"
	LevelNotice    = "NOTICE"
	LevelInfo      = "INFO"
	LevelDebug     = "DEBUG"
)

// ErrorLevels are the severities counted as errors by the anomaly detector's
// error-rate strategy.
var ErrorLevels = []string{LevelError, LevelCritical, "FATAL", LevelWarn}

// NetworkInfo holds network entities extracted from a log line.
// Fields are unioned: structured captures first, then regex extraction on the
// message augments what is missing.
type NetworkInfo struct {
	SrcIP        string   `json:"src_ip,omitempty"`
	DstIP        string   `json:"dst_ip,omitempty"`
	IPAddress    string   `json:"ip_address,omitempty"`
	SrcPort      string   `json:"src_port,omitempty"`
	DstPort      string   `json:"dst_port,omitempty"`
	Protocol     string   `json:"protocol,omitempty"`
	IPAddresses  []string `json:"ip_addresses,omitempty"`
	Ports        []string `json:"ports,omitempty"`
	Protocols    []string `json:"protocols,omitempty"`
	MACAddresses []string `json:"mac_addresses,omitempty"`
}

// IsEmpty reports whether no network entity was extracted.
func (n NetworkInfo) IsEmpty() bool {
	return n.SrcIP == "" && n.DstIP == "" && n.IPAddress == "" &&
		n.SrcPort == "" && n.DstPort == "" && n.Protocol == "" &&
		len(n.IPAddresses) == 0 && len(n.Ports) == 0 &&
		len(n.Protocols) == 0 && len(n.MACAddresses) == 0
}

// LogRecord is the canonical unit persisted for every ingested line.
type LogRecord struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`  // event time parsed from the line
	CreatedAt    time.Time      `json:"created_at"` // wall clock at persistence
	Level        string         `json:"level"`
	Message      string         `json:"message"`
	Source       string         `json:"source,omitempty"`
	LogType      string         `json:"log_type,omitempty"` // registry entry name, "json", or "unknown"
	TemplateID   string         `json:"template_id,omitempty"`
	Template     string         `json:"template,omitempty"`
	ClusterSize  int            `json:"cluster_size,omitempty"`
	Network      NetworkInfo    `json:"network_info"`
	ParsedFields map[string]any `json:"parsed_fields,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	FileID       string         `json:"file_id,omitempty"`
	Filename     string         `json:"filename,omitempty"`
}

// Template is the miner's persisted output: the invariant token skeleton of a
// class of structurally equivalent lines plus its occurrence statistics.
type Template struct {
	TemplateID  string    `json:"template_id"`
	Template    string    `json:"template"`
	Count       int64     `json:"count"`
	ClusterSize int64     `json:"cluster_size"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// FileUpload status values. A manifest transitions
// processing -> {completed, failed} exactly once.
const (
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// FileUpload is the manifest tracking one uploaded log file.
type FileUpload struct {
	FileID           string     `json:"file_id"`
	Filename         string     `json:"filename"` // stored name: "<file_id>_<original>"
	OriginalFilename string     `json:"original_filename"`
	FileSize         int64      `json:"file_size"`
	UploadTimestamp  time.Time  `json:"upload_timestamp"`
	Status           string     `json:"status"`
	ProcessedLogs    int        `json:"processed_logs"`
	FailedLogs       int        `json:"failed_logs"`
	Error            string     `json:"error,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// FileUploadPatch carries the mutable fields of a FileUpload manifest.
// Nil pointers leave the stored value untouched.
type FileUploadPatch struct {
	Status        *string
	ProcessedLogs *int
	FailedLogs    *int
	Error         *string
	CompletedAt   *time.Time
}

// Anomaly kinds emitted by the detection strategies.
const (
	AnomalyVolumeSpike      = "VOLUME_SPIKE"
	AnomalyVolumeDrop       = "VOLUME_DROP"
	AnomalyHighErrorRate    = "HIGH_ERROR_RATE"
	AnomalyNewTemplateSurge = "NEW_TEMPLATE_SURGE"
	AnomalyRareTemplate     = "RARE_TEMPLATE_ACTIVITY"
	AnomalyMLDetected       = "ML_DETECTED_ANOMALY"
	AnomalySourceSilence    = "SOURCE_SILENCE"
)

// Anomaly severity levels.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Anomaly is one finding of a detection cycle. Anomalies are append-only.
type Anomaly struct {
	ID                string         `json:"id"`
	Timestamp         time.Time      `json:"timestamp"`
	Type              string         `json:"anomaly_type"`
	Severity          string         `json:"severity"`
	Description       string         `json:"description"`
	AffectedTemplates []string       `json:"affected_templates"`
	LogCount          int            `json:"log_count"`
	Score             float64        `json:"score"`
	Details           map[string]any `json:"details,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// QueryFilter selects records for /api/logs/query and internal reads.
// Zero values mean "no constraint"; HasNetworkInfo filters only when true.
type QueryFilter struct {
	TemplateID      string
	StartTime       *time.Time
	EndTime         *time.Time
	Level           string
	Source          string // case-insensitive substring
	MessageContains string // case-insensitive substring
	FileID          string
	LogType         string
	HasNetworkInfo  *bool
	Protocol        string
	IPAddress       string
}
