package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blackice"

// Metrics holds the Prometheus collectors for the advisory service.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: route, status
	HTTPDuration *prometheus.HistogramVec // labels: route

	Predictions     *prometheus.CounterVec // labels: model, level
	FeedbackReports *prometheus.CounterVec // labels: condition
	Recalibrations  prometheus.Counter

	// Weather provider metrics.
	WeatherFetches     *prometheus.CounterVec   // labels: provider, outcome={success,error,degraded}
	WeatherAPIDuration *prometheus.HistogramVec // labels: provider
	CacheLookups       *prometheus.CounterVec   // labels: cache, result={hit,miss}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
	GeocodeEnabled     prometheus.Gauge

	// Monitor pipeline metrics.
	AlertsPublished *prometheus.CounterVec // labels: sink={store,kafka,websocket}
	SensorReadings  *prometheus.CounterVec // labels: outcome={accepted,rejected}
	MonitorDuration prometheus.Histogram
	PipelineRunning prometheus.Gauge
}

func newMetrics(buckets bool) *Metrics {
	hist := func(name, help string, b []float64) prometheus.HistogramOpts {
		opts := prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help}
		if buckets {
			opts.Buckets = b
		}
		return opts
	}
	apiBuckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(
			hist("http_request_duration_seconds", "HTTP request duration by route.", apiBuckets),
			[]string{"route"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Risk assessments served by model and level.",
		}, []string{"model", "level"}),
		FeedbackReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_reports_total",
			Help:      "Ground-truth reports submitted by actual condition.",
		}, []string{"condition"}),
		Recalibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalibrations_total",
			Help:      "Times the BIFI weights were adjusted.",
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetches_total",
			Help:      "Weather provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WeatherAPIDuration: prometheus.NewHistogramVec(
			hist("weather_api_duration_seconds", "Weather provider request duration in seconds.", apiBuckets),
			[]string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(
			hist("geocode_api_duration_seconds", "Mapbox API request duration in seconds.", apiBuckets),
			[]string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding is enabled, 0 otherwise.",
		}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Alerts delivered by sink.",
		}, []string{"sink"}),
		SensorReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_readings_total",
			Help:      "Road sensor messages by outcome.",
		}, []string{"outcome"}),
		MonitorDuration: prometheus.NewHistogram(
			hist("monitor_cycle_duration_seconds", "Duration of a complete monitor cycle.", []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60})),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the monitor pipeline is active, 0 when shut down.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HTTPRequests,
		m.HTTPDuration,
		m.Predictions,
		m.FeedbackReports,
		m.Recalibrations,
		m.WeatherFetches,
		m.WeatherAPIDuration,
		m.CacheLookups,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.AlertsPublished,
		m.SensorReadings,
		m.MonitorDuration,
		m.PipelineRunning,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics(false)
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
