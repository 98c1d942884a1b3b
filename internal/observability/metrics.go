package observability

import (
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nowcast"

// Metrics holds the Prometheus counters, histograms, and gauges for the nowcast service.
type Metrics struct {
	RefreshRunning    prometheus.Gauge
	ForecastAvailable prometheus.Gauge

	// Service update metrics.
	Updates        *prometheus.CounterVec   // labels: operation={location,all,refresh}, outcome={success,<error kind>}
	UpdateDuration *prometheus.HistogramVec // labels: operation

	// Query provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,<error kind>}
	QueryCache       *prometheus.CounterVec   // labels: provider, result={hit,miss}
	FetchDuration    *prometheus.HistogramVec // labels: host

	// Alerting metrics.
	AlertsPublished *prometheus.CounterVec // labels: level
	AlertErrors     prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshRunning,
		m.ForecastAvailable,
		m.Updates,
		m.UpdateDuration,
		m.ProviderRequests,
		m.QueryCache,
		m.FetchDuration,
		m.AlertsPublished,
		m.AlertErrors,
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
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_running",
			Help:      "1 when the periodic refresh is scheduled, 0 when stopped.",
		}),
		ForecastAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_available",
			Help:      "1 when the current record holds a forecast, 0 otherwise.",
		}),
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_total",
			Help:      "Record updates by operation and outcome.",
		}, []string{"operation", "outcome"}),
		UpdateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Duration of a record update from request to commit.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Remote query provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Query cache lookups by provider and result.",
		}, []string{"provider", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"host"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Rain alerts handed to the alert sink, by level.",
		}, []string{"level"}),
		AlertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_errors_total",
			Help:      "Alert sink publish failures.",
		}),
	}
}

// CacheLookup counts one query cache lookup.
func (m *Metrics) CacheLookup(provider string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.QueryCache.WithLabelValues(provider, result).Inc()
}

// ObserveFetch observes one upstream request.
func (m *Metrics) ObserveFetch(host string, d time.Duration) {
	m.FetchDuration.WithLabelValues(host).Observe(d.Seconds())
}

// ProviderRequest counts one remote lookup by outcome.
func (m *Metrics) ProviderRequest(provider string, err error) {
	m.ProviderRequests.WithLabelValues(provider, outcome(err)).Inc()
}

// Update records one service update.
func (m *Metrics) Update(operation string, d time.Duration, err error) {
	m.Updates.WithLabelValues(operation, outcome(err)).Inc()
	m.UpdateDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return domain.ErrorKind(err)
}
