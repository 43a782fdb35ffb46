package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty redis url", func(c *Config) { c.RedisURL = "" }},
		{"empty database", func(c *Config) { c.Database = "" }},
		{"port too low", func(c *Config) { c.APIPort = 0 }},
		{"port too high", func(c *Config) { c.APIPort = 70000 }},
		{"empty upload dir", func(c *Config) { c.UploadDir = "" }},
		{"tiny snapshot interval", func(c *Config) { c.SnapshotInterval = time.Millisecond }},
		{"zero queue", func(c *Config) { c.MinerQueueSize = 0 }},
		{"zero window", func(c *Config) { c.DetectionWindowHours = 0 }},
		{"tracing without endpoint", func(c *Config) { c.TracingEnabled = true; c.TracingEndpoint = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("redis_url: redis://cache:6379/1\napi_port: 9000\ndetection_interval: 1m\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, time.Minute, cfg.DetectionInterval)
	// Untouched keys keep defaults.
	assert.Equal(t, "logsieve", cfg.Database)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LOGSIEVE_REDIS_URL", "redis://env:6379/0")
	t.Setenv("LOGSIEVE_DB", "envdb")
	t.Setenv("LOGSIEVE_ADDR", "0.0.0.0:9100")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "redis://env:6379/0", cfg.RedisURL)
	assert.Equal(t, "envdb", cfg.Database)
	assert.Equal(t, 9100, cfg.APIPort)
}

func TestApplyEnvBindAddressForms(t *testing.T) {
	cases := []struct {
		addr string
		port int
	}{
		{"9100", 9100},
		{":9200", 9200},
		{"127.0.0.1:9300", 9300},
	}
	for _, tc := range cases {
		t.Run(tc.addr, func(t *testing.T) {
			t.Setenv("LOGSIEVE_ADDR", tc.addr)
			cfg := Default()
			require.NoError(t, cfg.ApplyEnv())
			assert.Equal(t, tc.port, cfg.APIPort)
		})
	}
}

func TestApplyEnvRejectsBadBindAddress(t *testing.T) {
	for _, addr := range []string{"not-a-port", ":http", "host:0", ":70000", "a:b:c"} {
		t.Run(addr, func(t *testing.T) {
			t.Setenv("LOGSIEVE_ADDR", addr)
			cfg := Default()
			err := cfg.ApplyEnv()
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
			// The bad value never reaches the config.
			assert.Equal(t, 8000, cfg.APIPort)
		})
	}
}
