package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vetviz"

// Metrics holds the Prometheus counters and histograms for view builds.
// Every Metrics owns its registry, so batch runs, servers and tests never
// collide on the default registry.
type Metrics struct {
	Registry *prometheus.Registry

	RowsIngested     prometheus.Counter
	AgesClassified   prometheus.Counter
	AgesUnclassified prometheus.Counter
	Locations        *prometheus.CounterVec // labels: status={mapped,unmapped,geocoded}
	DuplicateKeys    prometheus.Counter
	ViewFailures     *prometheus.CounterVec // labels: view
	BuildDuration    prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
}

// NewMetrics creates all metrics and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Rows read from input tables.",
		}),
		AgesClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ages_classified_total",
			Help:      "Age cells replaced by a life-stage label.",
		}),
		AgesUnclassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ages_unclassified_total",
			Help:      "Age cells that matched no bucket and were left unchanged.",
		}),
		Locations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_total",
			Help:      "Joined rows by location status.",
		}, []string{"status"}),
		DuplicateKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_duplicate_keys_total",
			Help:      "Duplicate location names overwritten in lookup tables.",
		}),
		ViewFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_failures_total",
			Help:      "Views that could not be built, by view.",
		}, []string{"view"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete views build.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	m.Registry.MustRegister(
		m.RowsIngested,
		m.AgesClassified,
		m.AgesUnclassified,
		m.Locations,
		m.DuplicateKeys,
		m.ViewFailures,
		m.BuildDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// WriteTextfile dumps the registry for the node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
