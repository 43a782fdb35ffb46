package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for ingest and detection observability.
type Metrics struct {
	LogsIngested   prometheus.Counter     // Total records persisted
	LinesFailed    prometheus.Counter     // Total lines that failed parsing or storage
	MinerFallbacks prometheus.Counter     // Total records that got a fallback pseudo-template
	MinerQueue     prometheus.GaugeFunc   // Current miner request queue depth
	ActiveClusters prometheus.GaugeFunc   // Live clusters in the parse tree
	Anomalies      *prometheus.CounterVec // Anomalies found, labeled by type
	Cycles         prometheus.Counter     // Completed detection cycles
	StorageErrors  prometheus.Counter     // Failed storage operations
}

// QueueObserver reports miner occupancy for the gauge funcs.
type QueueObserver interface {
	QueueDepth() int
	ClusterCount() int
}

// New creates and registers all metrics on the given registerer. Passing a
// dedicated registry keeps tests isolated from the global default.
func New(reg prometheus.Registerer, observer QueueObserver) *Metrics {
	logsIngested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_logs_ingested_total",
		Help: "Total number of log records persisted",
	})
	linesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_lines_failed_total",
		Help: "Total number of lines that failed parsing or storage",
	})
	minerFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_miner_fallbacks_total",
		Help: "Total number of records assigned a fallback pseudo-template",
	})
	minerQueue := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "logsieve_miner_queue_depth",
		Help: "Current number of requests waiting for the template miner",
	}, func() float64 {
		if observer == nil {
			return 0
		}
		return float64(observer.QueueDepth())
	})
	activeClusters := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "logsieve_miner_clusters",
		Help: "Live clusters in the template parse tree",
	}, func() float64 {
		if observer == nil {
			return 0
		}
		return float64(observer.ClusterCount())
	})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logsieve_anomalies_total",
		Help: "Total anomalies found, by type",
	}, []string{"type"})
	cycles := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_detection_cycles_total",
		Help: "Total completed anomaly detection cycles",
	})
	storageErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_storage_errors_total",
		Help: "Total failed storage operations",
	})

	reg.MustRegister(logsIngested, linesFailed, minerFallbacks,
		minerQueue, activeClusters, anomalies, cycles, storageErrors)

	return &Metrics{
		LogsIngested:   logsIngested,
		LinesFailed:    linesFailed,
		MinerFallbacks: minerFallbacks,
		MinerQueue:     minerQueue,
		ActiveClusters: activeClusters,
		Anomalies:      anomalies,
		Cycles:         cycles,
		StorageErrors:  storageErrors,
	}
}
