package metrics

import (
	"net/http"
	"strconv"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// trainingBuckets spans a fraction of a second to several minutes
var trainingBuckets = prometheus.ExponentialBuckets(0.1, 2, 12)

// Manager owns the registry and every metric
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	fitRuns       *prometheus.CounterVec
	fitDuration   prometheus.Histogram
	trainingDays  prometheus.Gauge
	testScores    *prometheus.GaugeVec
	forecastRuns  prometheus.Counter
	lastFitUnix   prometheus.Gauge
	queries       *prometheus.CounterVec
	queryLatency  prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// NewManager creates the metrics on a dedicated registry unless one is provided
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "salesforecast",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fitRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fit_runs_total",
		Help:      "Number of forecaster fits by outcome",
	}, []string{"status"})

	m.fitDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fit_duration_seconds",
		Help:      "Time spent loading, training and evaluating both models",
		Buckets:   trainingBuckets,
	})

	m.trainingDays = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "training_days",
		Help:      "Number of daily points in the last training series",
	})

	m.testScores = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "test_score",
		Help:      "Test split score of the last fit by model and metric",
	}, []string{"model", "metric"})

	m.forecastRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "forecasts_total",
		Help:      "Number of forecasts generated",
	})

	m.lastFitUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_fit_timestamp_seconds",
		Help:      "Unix time of the last successful fit",
	})

	m.queries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queries_total",
		Help:      "Number of natural language queries by outcome",
	}, []string{"status"})

	m.queryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_duration_seconds",
		Help:      "Latency of language model calls",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpDurations = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

func status(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusError
}

// ObserveFit records the outcome of a fit. Scores and the training size are only updated on success.
func (m *Manager) ObserveFit(d time.Duration, days int, scores *forecaster.ModelScores, err error) {
	m.fitRuns.WithLabelValues(status(err == nil)).Inc()
	if err != nil {
		return
	}
	m.fitDuration.Observe(d.Seconds())
	m.trainingDays.Set(float64(days))
	m.lastFitUnix.SetToCurrentTime()
	m.SetScores(scores)
}

// SetScores exports the test split scores of each model
func (m *Manager) SetScores(scores *forecaster.ModelScores) {
	if scores == nil {
		return
	}
	for name, s := range map[string]*forecaster.Scores{
		"lstm":     scores.LSTM,
		"gbt":      scores.GBT,
		"ensemble": scores.Ensemble,
	} {
		if s == nil {
			continue
		}
		m.testScores.WithLabelValues(name, "mse").Set(s.MSE)
		m.testScores.WithLabelValues(name, "rmse").Set(s.RMSE)
		m.testScores.WithLabelValues(name, "mae").Set(s.MAE)
		m.testScores.WithLabelValues(name, "mape").Set(s.MAPE)
		m.testScores.WithLabelValues(name, "r2").Set(s.R2)
	}
}

// ObserveForecast counts a generated forecast
func (m *Manager) ObserveForecast() {
	m.forecastRuns.Inc()
}

// ObserveQuery records a language model call
func (m *Manager) ObserveQuery(ok bool, d time.Duration) {
	m.queries.WithLabelValues(status(ok)).Inc()
	m.queryLatency.Observe(d.Seconds())
}

// ObserveHTTP records a served request
func (m *Manager) ObserveHTTP(route, method string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDurations.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry returns the registry holding every metric
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
