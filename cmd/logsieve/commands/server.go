package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/logsieve/logsieve/internal/anomaly"
	"github.com/logsieve/logsieve/internal/apiserver"
	"github.com/logsieve/logsieve/internal/config"
	"github.com/logsieve/logsieve/internal/lifecycle"
	"github.com/logsieve/logsieve/internal/logging"
	"github.com/logsieve/logsieve/internal/metrics"
	"github.com/logsieve/logsieve/internal/mining"
	"github.com/logsieve/logsieve/internal/pipeline"
	"github.com/logsieve/logsieve/internal/stats"
	"github.com/logsieve/logsieve/internal/storage"
	"github.com/logsieve/logsieve/internal/tracing"
)

var (
	configPath            string
	redisURL              string
	database              string
	apiPort               int
	uploadDir             string
	snapshotPath          string
	snapshotInterval      time.Duration
	minerQueueSize        int
	maxConcurrentRequests int
	detectionInterval     time.Duration
	detectionWindowHours  int
	skewBound             time.Duration
	tracingEnabled        bool
	tracingEndpoint       string
	tracingTLSCAPath      string
	tracingTLSInsecure    bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the LogSieve server",
	Long: `Start the LogSieve server which ingests log streams, mines templates,
detects anomalies on a schedule, and serves the query API.`,
	Run: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file (optional)")
	serverCmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis connection URL (overrides config)")
	serverCmd.Flags().StringVar(&database, "database", "", "Logical database name, used as the key prefix (overrides config)")
	serverCmd.Flags().IntVar(&apiPort, "api-port", 0, "Port the API server listens on (overrides config)")
	serverCmd.Flags().StringVar(&uploadDir, "upload-dir", "", "Directory where uploaded files are staged (overrides config)")
	serverCmd.Flags().StringVar(&snapshotPath, "snapshot-path", "", "File path for template parse-tree snapshots (overrides config)")
	serverCmd.Flags().DurationVar(&snapshotInterval, "snapshot-interval", 0, "How often the parse tree is snapshotted (overrides config)")
	serverCmd.Flags().IntVar(&minerQueueSize, "miner-queue-size", 0, "Bound on the template miner's request queue (overrides config)")
	serverCmd.Flags().IntVar(&maxConcurrentRequests, "max-concurrent-requests", 0, "Maximum number of concurrent API requests (overrides config)")
	serverCmd.Flags().DurationVar(&detectionInterval, "detection-interval", 0, "Period between anomaly detection cycles; 0 keeps the configured value")
	serverCmd.Flags().IntVar(&detectionWindowHours, "detection-window-hours", 0, "Hours of history each detection cycle analyzes (overrides config)")
	serverCmd.Flags().DurationVar(&skewBound, "skew-bound", 0, "How far in the future an event timestamp may claim to be (overrides config)")
	serverCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing (default: false)")
	serverCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces (e.g., otel-collector:4317)")
	serverCmd.Flags().StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "Path to CA certificate for TLS verification (optional)")
	serverCmd.Flags().BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification (insecure, use only for testing)")
}

// loadConfig layers file, environment, then flags over the defaults.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Default()
	if configPath != "" {
		HandleError(cfg.LoadFile(configPath), "Configuration error")
	}
	HandleError(cfg.ApplyEnv(), "Configuration error")

	flags := cmd.Flags()
	if flags.Changed("redis-url") {
		cfg.RedisURL = redisURL
	}
	if flags.Changed("database") {
		cfg.Database = database
	}
	if flags.Changed("api-port") {
		cfg.APIPort = apiPort
	}
	if flags.Changed("upload-dir") {
		cfg.UploadDir = uploadDir
	}
	if flags.Changed("snapshot-path") {
		cfg.SnapshotPath = snapshotPath
	}
	if flags.Changed("snapshot-interval") {
		cfg.SnapshotInterval = snapshotInterval
	}
	if flags.Changed("miner-queue-size") {
		cfg.MinerQueueSize = minerQueueSize
	}
	if flags.Changed("max-concurrent-requests") {
		cfg.MaxConcurrentRequests = maxConcurrentRequests
	}
	if flags.Changed("detection-interval") {
		cfg.DetectionInterval = detectionInterval
	}
	if flags.Changed("detection-window-hours") {
		cfg.DetectionWindowHours = detectionWindowHours
	}
	if flags.Changed("skew-bound") {
		cfg.SkewBound = skewBound
	}
	if flags.Changed("tracing-enabled") {
		cfg.TracingEnabled = tracingEnabled
	}
	if flags.Changed("tracing-endpoint") {
		cfg.TracingEndpoint = tracingEndpoint
	}
	if flags.Changed("tracing-tls-ca") {
		cfg.TracingTLSCAPath = tracingTLSCAPath
	}

	HandleError(cfg.Validate(), "Configuration error")
	return cfg
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("server")

	logger.Info("Starting LogSieve v%s", Version)
	logger.Debug("Configuration loaded: APIPort=%d, Database=%s", cfg.APIPort, cfg.Database)

	manager := lifecycle.NewManager()

	// Tracing provider (no dependencies)
	tracingProvider, err := tracing.NewTracingProvider(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   cfg.TracingTLSCAPath,
		TLSInsecure: tracingTLSInsecure,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider = nil
	}
	if tracingProvider != nil {
		HandleError(manager.Register(tracingProvider), "Tracing registration error")
	}

	// Storage adapter
	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.Database)
	HandleError(err, "Storage initialization error")
	HandleError(manager.Register(store), "Storage registration error")

	// Template miner and its snapshot persistence
	miner, err := mining.NewMiner(mining.DefaultConfig(), cfg.MinerQueueSize)
	HandleError(err, "Miner initialization error")
	HandleError(manager.Register(miner), "Miner registration error")

	if err := os.MkdirAll(filepath.Dir(cfg.SnapshotPath), 0o755); err != nil {
		HandleError(err, "Snapshot directory error")
	}
	persistence := mining.NewPersistenceManager(miner, cfg.SnapshotPath, cfg.SnapshotInterval)
	HandleError(manager.Register(persistence, miner), "Persistence registration error")

	// Metrics on a dedicated registry, exposed via /metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry, miner)

	assembler := pipeline.NewAssembler(cfg.SkewBound)
	processor := pipeline.NewProcessor(assembler, miner, store, m)
	aggregator := stats.NewAggregator(store)

	// Anomaly detection scheduler; zero interval disables it
	if cfg.DetectionInterval > 0 {
		detector := anomaly.NewDetector(store, m, time.Duration(cfg.DetectionWindowHours)*time.Hour)
		scheduler := anomaly.NewScheduler(detector, cfg.DetectionInterval)
		HandleError(manager.Register(scheduler, store), "Scheduler registration error")
	} else {
		logger.Info("In-process anomaly detection disabled")
	}

	apiComponent := apiserver.New(apiserver.Options{
		Port:                  cfg.APIPort,
		Processor:             processor,
		Store:                 store,
		Aggregator:            aggregator,
		Miner:                 miner,
		UploadDir:             cfg.UploadDir,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		Registry:              registry,
		TracingProvider:       tracingProvider,
	})
	HandleError(manager.Register(apiComponent, store, miner), "API server registration error")

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		HandleError(err, "Startup error")
	}

	logger.Info("Application started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	logger.Info("Shutdown complete")
}
