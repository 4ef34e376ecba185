package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the Prometheus instruments for pipeline runs.
type Registry struct {
	// Flow
	ItemsEmitted       prometheus.Counter
	ItemsProcessed     *prometheus.CounterVec
	WorkerFaults       *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec

	// Queues
	QueueLength        *prometheus.GaugeVec
	QueuePeak          *prometheus.GaugeVec
	BackpressureEvents *prometheus.CounterVec

	// Lifecycle
	StagesClosed *prometheus.CounterVec
	IdleTime     prometheus.Histogram
	Runs         *prometheus.CounterVec
}

// NewRegistry creates the instruments under the default "stageflow"
// namespace and registers them with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates the instruments described by config.
// It returns nil when config.Enabled is false.
func NewRegistryWithConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(config.ConstLabels) > 0 {
		reg = prometheus.WrapRegistererWith(config.ConstLabels, reg)
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	factory := promauto.With(reg)

	return &Registry{
		ItemsEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "items_emitted_total",
				Help:      "Total number of items produced by the emitter",
			},
		),

		ItemsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "items_processed_total",
				Help:      "Total number of items a stage finished processing",
			},
			[]string{"stage"},
		),

		WorkerFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "worker_faults_total",
				Help:      "Total number of items dropped because a worker faulted",
			},
			[]string{"stage"},
		),

		ProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "processing_duration_seconds",
				Help:      "Time a worker spent processing one item",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		QueueLength: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "queue_length",
				Help:      "Last observed queue length per stage",
			},
			[]string{"stage"},
		),

		QueuePeak: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "queue_peak",
				Help:      "Largest observed queue length per stage",
			},
			[]string{"stage"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "backpressure_events_total",
				Help:      "Total number of sends that waited on a full stage queue",
			},
			[]string{"stage"},
		),

		StagesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "stage_closed_total",
				Help:      "Total number of times a stage closed its output",
			},
			[]string{"stage"},
		),

		IdleTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "idle_time_seconds",
				Help:      "Time between an item's creation and the end of its run",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),

		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"status"},
		),
	}
}
