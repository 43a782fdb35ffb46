package commands

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/logsieve/logsieve/internal/anomaly"
	"github.com/logsieve/logsieve/internal/config"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/metrics"
	"github.com/logsieve/logsieve/internal/storage"
)

var (
	detectConfigPath  string
	detectRedisURL    string
	detectDatabase    string
	detectWindowHours int
	daemonMode        bool
	daemonInterval    time.Duration
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run anomaly detection against the stored corpus",
	Long: `Run one anomaly detection cycle and exit, or keep running with
--daemon. Findings are persisted to storage; a failed cycle in daemon mode
retries after one minute.`,
	Run: runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectConfigPath, "config", "", "Path to a YAML configuration file (optional)")
	detectCmd.Flags().StringVar(&detectRedisURL, "redis-url", "", "Redis connection URL (overrides config)")
	detectCmd.Flags().StringVar(&detectDatabase, "database", "", "Logical database name, used as the key prefix (overrides config)")
	detectCmd.Flags().IntVar(&detectWindowHours, "window-hours", 0, "Hours of history to analyze (overrides config)")
	detectCmd.Flags().BoolVar(&daemonMode, "daemon", false, "Keep running, one cycle per interval")
	detectCmd.Flags().DurationVar(&daemonInterval, "interval", 5*time.Minute, "Cycle interval in daemon mode")
}

func runDetect(cmd *cobra.Command, args []string) {
	cfg := config.Default()
	if detectConfigPath != "" {
		HandleError(cfg.LoadFile(detectConfigPath), "Configuration error")
	}
	HandleError(cfg.ApplyEnv(), "Configuration error")

	flags := cmd.Flags()
	if flags.Changed("redis-url") {
		cfg.RedisURL = detectRedisURL
	}
	if flags.Changed("database") {
		cfg.Database = detectDatabase
	}
	if flags.Changed("window-hours") {
		cfg.DetectionWindowHours = detectWindowHours
	}
	HandleError(cfg.Validate(), "Configuration error")

	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("detect")

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.Database)
	HandleError(err, "Storage initialization error")

	ctx := context.Background()
	HandleError(store.Start(ctx), "Storage connection error")
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Stop(stopCtx)
	}()

	m := metrics.New(prometheus.NewRegistry(), nil)
	detector := anomaly.NewDetector(store, m, time.Duration(cfg.DetectionWindowHours)*time.Hour)

	if !daemonMode {
		findings, err := detector.RunCycle(ctx)
		HandleError(err, "Detection cycle error")
		logger.Info("Detection cycle complete: %d anomalies found", len(findings))
		return
	}

	logger.Info("Running detection every %s", daemonInterval)
	for {
		findings, err := detector.RunCycle(ctx)
		if err != nil {
			logger.Error("Detection cycle failed: %v", err)
			time.Sleep(time.Minute)
			continue
		}
		logger.Info("Detection cycle complete: %d anomalies found", len(findings))
		time.Sleep(daemonInterval)
	}
}
