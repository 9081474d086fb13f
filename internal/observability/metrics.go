package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geohazard"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Upstream fetch metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: source, outcome={success,timeout,upstream_4xx,upstream_5xx,parse_error,transport}
	UpstreamDuration *prometheus.HistogramVec // labels: source
	CacheLookups     *prometheus.CounterVec   // labels: cache, result={hit,miss,error}
	CacheEntries     *prometheus.GaugeVec     // labels: cache

	// Assessment metrics.
	Assessments         *prometheus.CounterVec   // labels: kind={soil,risk,overview,recommendations}, outcome={ok,degraded,invalid}
	AssessmentDuration  *prometheus.HistogramVec // labels: kind
	ModelFailures       *prometheus.CounterVec   // labels: model
	GeocodeRequests     *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeEnabled      prometheus.Gauge
	HTTPRequestDuration *prometheus.HistogramVec // labels: route, code

	// Alert metrics.
	AlertsRaised       *prometheus.CounterVec // labels: type, severity
	AlertsSuppressed   prometheus.Counter
	AlertsActive       prometheus.Gauge
	SeismicEventErrors prometheus.Counter
	SinkErrors         *prometheus.CounterVec // labels: sink
	HubDropped         prometheus.Counter
	HubSubscribers     prometheus.Gauge

	// Seismic poller metrics.
	PollerRunning     prometheus.Gauge
	PollBatchSize     prometheus.Histogram
	PollCycleDuration prometheus.Histogram
	PollFailures      prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Live entries per cache after the last sweep.",
		}, []string{"cache"}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessments served by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AssessmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "End-to-end assessment latency including upstream fetches.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		ModelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_failures_total",
			Help:      "Risk model computations that produced unusable output.",
		}, []string{"model"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place name enrichment is enabled, 0 otherwise.",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request duration by route and status code.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "code"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts that entered the ALERTED state.",
		}, []string{"type", "severity"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Evaluated observations that stayed below the alert threshold.",
		}),
		AlertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Alerts currently active.",
		}),
		SeismicEventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seismic_event_errors_total",
			Help:      "Malformed earthquake events skipped during evaluation.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_sink_errors_total",
			Help:      "Alert publish failures by sink.",
		}, []string{"sink"}),
		HubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_hub_dropped_total",
			Help:      "Alerts dropped because a subscriber buffer was full.",
		}),
		HubSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_hub_subscribers",
			Help:      "Live alert stream subscribers.",
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seismic_poller_running",
			Help:      "1 when the seismic poller is active, 0 when shut down.",
		}),
		PollBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seismic_poll_batch_size",
			Help:      "Earthquake events returned per poll.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seismic_poll_cycle_duration_seconds",
			Help:      "Duration of a fetch-evaluate-expire poll cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seismic_poll_failures_total",
			Help:      "Poll cycles whose upstream fetch failed.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.CacheLookups,
		m.CacheEntries,
		m.Assessments,
		m.AssessmentDuration,
		m.ModelFailures,
		m.GeocodeRequests,
		m.GeocodeEnabled,
		m.HTTPRequestDuration,
		m.AlertsRaised,
		m.AlertsSuppressed,
		m.AlertsActive,
		m.SeismicEventErrors,
		m.SinkErrors,
		m.HubDropped,
		m.HubSubscribers,
		m.PollerRunning,
		m.PollBatchSize,
		m.PollCycleDuration,
		m.PollFailures,
	}
}
