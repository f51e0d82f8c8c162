package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitemap"

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	SitesLoaded prometheus.Gauge

	// Filter and search metrics.
	FilterApplications prometheus.Counter
	Searches           *prometheus.CounterVec // labels: outcome={match,no_match}
	SearchMatches      prometheus.Histogram

	// Isochrone metrics.
	IsochroneRequests  *prometheus.CounterVec   // labels: tier={direct,proxy}, outcome={success,network_error,provider_error}
	IsochroneDuration  *prometheus.HistogramVec // labels: tier={direct,proxy}
	IsochroneFallbacks prometheus.Counter
	IsochroneRejected  prometheus.Counter
	IsochroneStale     prometheus.Counter
	IsochroneEnabled   prometheus.Gauge

	// Session and telemetry metrics.
	SessionsActive   prometheus.Gauge
	SessionEvictions prometheus.Counter
	TelemetryEvents  *prometheus.CounterVec // labels: outcome={queued,dropped,published,failed}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SitesLoaded,
		m.FilterApplications,
		m.Searches,
		m.SearchMatches,
		m.IsochroneRequests,
		m.IsochroneDuration,
		m.IsochroneFallbacks,
		m.IsochroneRejected,
		m.IsochroneStale,
		m.IsochroneEnabled,
		m.SessionsActive,
		m.SessionEvictions,
		m.TelemetryEvents,
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
		SitesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sites_loaded",
			Help:      "Number of sites loaded from the dataset.",
		}),
		FilterApplications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_applications_total",
			Help:      "Total technology/status filter recomputations.",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Operator searches evaluated, by outcome.",
		}, []string{"outcome"}),
		SearchMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_matches",
			Help:      "Number of sites matched per operator search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		IsochroneRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "isochrone_requests_total",
			Help:      "Isochrone provider calls by tier and outcome.",
		}, []string{"tier", "outcome"}),
		IsochroneDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "isochrone_duration_seconds",
			Help:      "Isochrone provider call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tier"}),
		IsochroneFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "isochrone_fallbacks_total",
			Help:      "Isochrone requests that fell back to the CORS relay.",
		}),
		IsochroneRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "isochrone_rejected_total",
			Help:      "Isochrone requests rejected before transmission.",
		}),
		IsochroneStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "isochrone_stale_total",
			Help:      "Isochrone results discarded because the site was deselected.",
		}),
		IsochroneEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "isochrone_enabled",
			Help:      "1 when isochrone fetching is configured, 0 otherwise.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Map sessions currently held in memory.",
		}),
		SessionEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Map sessions evicted from the session cache.",
		}),
		TelemetryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_events_total",
			Help:      "Isochrone telemetry events by publish outcome.",
		}, []string{"outcome"}),
	}
}
