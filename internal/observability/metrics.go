package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "salestracker"

// Run outcomes recorded by ObserveRun.
const (
	OutcomeSuccess          = "success"
	OutcomeAggregationError = "aggregation_error"
	OutcomePersistError     = "persist_error"
	OutcomeRenderError      = "render_error"
	OutcomeDeliveryError    = "delivery_error"
	OutcomePanic            = "panic"
)

// Metrics holds the Prometheus collectors for the report pipeline and HTTP API.
type Metrics struct {
	pipelineRuns  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	skippedTicks  prometheus.Counter
	lastSuccess   prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		pipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report_pipeline",
			Name:      "runs_total",
			Help:      "Daily report pipeline runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report_pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each report pipeline stage.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		skippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report_pipeline",
			Name:      "skipped_ticks_total",
			Help:      "Scheduled ticks skipped because a run was still in progress.",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report_pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully delivered report.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveRun counts a finished pipeline run.
func (m *Metrics) ObserveRun(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SkippedTick counts a tick dropped by the run guard.
func (m *Metrics) SkippedTick() {
	if m == nil {
		return
	}
	m.skippedTicks.Inc()
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
