package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	ArticlesFetched   prometheus.Counter
	ArticlesProcessed prometheus.Counter
	ArticlesSkipped   *prometheus.CounterVec // labels: reason={missing_fields,classification_failed}

	// Classification metrics.
	ClassificationDuration prometheus.Histogram
	ClassificationCache    *prometheus.CounterVec // labels: result={hit,miss}
	ClassificationOutcomes *prometheus.CounterVec // labels: outcome={success,rate_limited,invalid,error}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,not_found,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Storage metrics.
	EventsIndexed *prometheus.CounterVec // labels: index
	IndexErrors   *prometheus.CounterVec // labels: index

	// Historical import metrics.
	RowsDropped *prometheus.CounterVec // labels: source={gtd,rand}, reason={invalid_date,invalid_row}

	// Scheduler metrics.
	IngestRunning     prometheus.Gauge
	RunsSkipped       prometheus.Counter
	IngestRunDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ArticlesFetched,
		m.ArticlesProcessed,
		m.ArticlesSkipped,
		m.ClassificationDuration,
		m.ClassificationCache,
		m.ClassificationOutcomes,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.EventsIndexed,
		m.IndexErrors,
		m.RowsDropped,
		m.IngestRunning,
		m.RunsSkipped,
		m.IngestRunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ArticlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "articles_fetched_total",
			Help:      "Total candidate articles returned by the news source.",
		}),
		ArticlesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "news_processed_total",
			Help:      "Total news articles successfully emitted as documents.",
		}),
		ArticlesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "articles_skipped_total",
			Help:      "Articles skipped before emission, by reason.",
		}, []string{"reason"}),
		ClassificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "terror_ingest",
			Name:      "classification_duration_seconds",
			Help:      "Wall-clock time spent classifying one article.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60},
		}),
		ClassificationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "classification_cache_total",
			Help:      "Classification cache lookups by result.",
		}, []string{"result"}),
		ClassificationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "classification_outcomes_total",
			Help:      "Completion attempts by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		EventsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "events_indexed_total",
			Help:      "Documents written to the storage sink, by index.",
		}, []string{"index"}),
		IndexErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "index_errors_total",
			Help:      "Per-document persistence failures, by index.",
		}, []string{"index"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "rows_dropped_total",
			Help:      "Historical CSV rows dropped during normalization.",
		}, []string{"source", "reason"}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terror_ingest",
			Name:      "ingest_running",
			Help:      "1 while a news ingestion run is in progress.",
		}),
		RunsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terror_ingest",
			Name:      "scheduler_runs_skipped_total",
			Help:      "Ticks dropped because a run was already in progress.",
		}),
		IngestRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "terror_ingest",
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of one complete news ingestion run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}
