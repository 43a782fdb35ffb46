package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	// RedisURL is the storage connection URL
	RedisURL string `koanf:"redis_url"`

	// Database is the logical database name, used as the Redis key prefix
	Database string `koanf:"database"`

	// APIPort is the port the API server listens on
	APIPort int `koanf:"api_port"`

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string `koanf:"log_level"`

	// UploadDir is the directory where uploaded log files are staged
	UploadDir string `koanf:"upload_dir"`

	// SnapshotPath is the file path for template parse-tree snapshots
	SnapshotPath string `koanf:"snapshot_path"`

	// SnapshotInterval is how often the parse tree is snapshotted
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// MinerQueueSize bounds the template miner's request queue
	MinerQueueSize int `koanf:"miner_queue_size"`

	// MaxConcurrentRequests is the maximum number of concurrent API requests
	MaxConcurrentRequests int `koanf:"max_concurrent_requests"`

	// DetectionInterval is the period between anomaly detection cycles;
	// zero disables the in-process scheduler
	DetectionInterval time.Duration `koanf:"detection_interval"`

	// DetectionWindowHours is how much history each detection cycle analyzes
	DetectionWindowHours int `koanf:"detection_window_hours"`

	// SkewBound is how far in the future an event timestamp may claim to be
	// before it is clamped to the ingest instant
	SkewBound time.Duration `koanf:"skew_bound"`

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled
	TracingEnabled bool `koanf:"tracing_enabled"`

	// TracingEndpoint is the OTLP gRPC endpoint for trace export
	TracingEndpoint string `koanf:"tracing_endpoint"`

	// TracingTLSCAPath is the path to the CA certificate for TLS verification
	TracingTLSCAPath string `koanf:"tracing_tls_ca_path"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() *Config {
	return &Config{
		RedisURL:              "redis://localhost:6379/0",
		Database:              "logsieve",
		APIPort:               8000,
		LogLevel:              "info",
		UploadDir:             "uploads",
		SnapshotPath:          "data/templates.json",
		SnapshotInterval:      60 * time.Second,
		MinerQueueSize:        1024,
		MaxConcurrentRequests: 64,
		DetectionInterval:     5 * time.Minute,
		DetectionWindowHours:  24,
		SkewBound:             5 * time.Minute,
	}
}

// LoadFile merges a YAML configuration file over the receiver. Unset keys
// keep their current values.
func (c *Config) LoadFile(path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := k.Unmarshal("", c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides connection settings from the environment:
// LOGSIEVE_REDIS_URL (storage URL), LOGSIEVE_DB (logical database name) and
// LOGSIEVE_ADDR (bind address, either a bare port or host:port; only the
// port is kept since the server listens on all interfaces).
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LOGSIEVE_REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("LOGSIEVE_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("LOGSIEVE_ADDR"); v != "" {
		port, err := parseBindAddr(v)
		if err != nil {
			return err
		}
		c.APIPort = port
	}
	return nil
}

// parseBindAddr extracts the port from a bind address like "9000",
// ":9000" or "0.0.0.0:9000".
func parseBindAddr(addr string) (int, error) {
	portStr := addr
	if strings.Contains(addr, ":") {
		_, p, err := net.SplitHostPort(addr)
		if err != nil {
			return 0, NewConfigError(fmt.Sprintf("invalid LOGSIEVE_ADDR %q: %v", addr, err))
		}
		portStr = p
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return 0, NewConfigError(fmt.Sprintf("invalid LOGSIEVE_ADDR %q: port must be between 1 and 65535", addr))
	}
	return port, nil
}

// Validate checks every field against its allowed range after all sources
// have been layered. The first violation is returned as a ConfigError; a nil
// result means the configuration is safe to run with.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return NewConfigError("RedisURL must not be empty")
	}

	if c.Database == "" {
		return NewConfigError("Database must not be empty")
	}

	if c.APIPort < 1 || c.APIPort > 65535 {
		return NewConfigError("APIPort must be between 1 and 65535")
	}

	if c.UploadDir == "" {
		return NewConfigError("UploadDir must not be empty")
	}

	if c.SnapshotPath == "" {
		return NewConfigError("SnapshotPath must not be empty")
	}

	if c.SnapshotInterval < time.Second {
		return NewConfigError("SnapshotInterval must be at least 1s")
	}

	if c.MinerQueueSize < 1 {
		return NewConfigError("MinerQueueSize must be at least 1")
	}

	if c.MaxConcurrentRequests < 1 {
		return NewConfigError("MaxConcurrentRequests must be at least 1")
	}

	if c.DetectionWindowHours < 1 {
		return NewConfigError("DetectionWindowHours must be at least 1")
	}

	if c.SkewBound < 0 {
		return NewConfigError("SkewBound must not be negative")
	}

	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError marks a configuration value the service refuses to start
// with. Callers match it with errors.As to separate operator mistakes from
// runtime failures.
type ConfigError struct {
	message string
}

// NewConfigError creates a ConfigError with the given message.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

func (e *ConfigError) Error() string {
	return e.message
}
