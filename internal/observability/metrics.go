package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_visor"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard pipeline.
type Metrics struct {
	Builds        prometheus.Counter
	BuildErrors   *prometheus.CounterVec // labels: kind={not_found,failed}
	BuildDuration prometheus.Histogram

	// Shape of the most recent successful build.
	SourceRows  prometheus.Gauge
	DroppedRows *prometheus.GaugeVec // labels: reason={latitude,longitude,coordinates}
	Incidents   prometheus.Gauge

	// Load cache.
	SourceReads prometheus.Counter
	LoadCache   *prometheus.CounterVec // labels: result={hit,miss}

	// Optional Kafka export.
	PublishedMessages prometheus.Counter
	PublishErrors     prometheus.Counter
	PublishEnabled    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Builds,
		m.BuildErrors,
		m.BuildDuration,
		m.SourceRows,
		m.DroppedRows,
		m.Incidents,
		m.SourceReads,
		m.LoadCache,
		m.PublishedMessages,
		m.PublishErrors,
		m.PublishEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total dataset builds (one per dashboard render or API call).",
		}),
		BuildErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_errors_total",
			Help:      "Failed dataset builds by kind.",
		}, []string{"kind"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a load-normalize-project pass.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		SourceRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_rows",
			Help:      "Data rows in the input file at the last build.",
		}),
		DroppedRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_rows",
			Help:      "Rows excluded for invalid coordinates at the last build.",
		}, []string{"reason"}),
		Incidents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incidents",
			Help:      "Incidents rendered at the last build.",
		}),
		SourceReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_reads_total",
			Help:      "Times the input file was read from disk.",
		}),
		LoadCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_cache_total",
			Help:      "Load cache lookups by result.",
		}, []string{"result"}),
		PublishedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_messages_total",
			Help:      "Incident messages written to the export topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed snapshot exports.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_enabled",
			Help:      "1 when snapshot export is enabled, 0 otherwise.",
		}),
	}
}
