package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wetbulb_sitemap"

// Metrics holds the Prometheus counters, histograms, and gauges for sitemap
// generation and serving.
type Metrics struct {
	RecordsStreamed      prometheus.Counter
	MalformedRecords     prometheus.Counter
	UnpublishableRecords prometheus.Counter
	SlugCollisions       prometheus.Counter

	// Partition generation.
	PartitionsGenerated *prometheus.CounterVec // labels: mode={country,flat}, outcome={success,error}
	PartitionDuration   prometheus.Histogram
	BatchRunning        prometheus.Gauge

	// Serving.
	IndexCache       *prometheus.CounterVec // labels: result={hit,miss,error}
	DocumentRequests *prometheus.CounterVec // labels: kind, status

	// Publishing.
	ArtifactsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RecordsStreamed,
		m.MalformedRecords,
		m.UnpublishableRecords,
		m.SlugCollisions,
		m.PartitionsGenerated,
		m.PartitionDuration,
		m.BatchRunning,
		m.IndexCache,
		m.DocumentRequests,
		m.ArtifactsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics for one-shot commands that expose no
// /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_streamed_total",
			Help:      "Gazetteer records read while generating partitions.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Records skipped for missing or invalid fields.",
		}),
		UnpublishableRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unpublishable_records_total",
			Help:      "Complete records skipped because a path segment slugged to empty.",
		}),
		SlugCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slug_collisions_total",
			Help:      "Distinct records that normalized to an already used location path.",
		}),
		PartitionsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_generated_total",
			Help:      "Partition documents generated by mode and outcome.",
		}, []string{"mode", "outcome"}),
		PartitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Time spent streaming the gazetteer for one partition scan.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_running",
			Help:      "1 while a batch generation run is active.",
		}),
		IndexCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_cache_total",
			Help:      "Sitemap index cache lookups by result.",
		}, []string{"result"}),
		DocumentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_requests_total",
			Help:      "Served sitemap documents by kind and HTTP status.",
		}, []string{"kind", "status"}),
		ArtifactsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_published_total",
			Help:      "Artifact notifications written to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
