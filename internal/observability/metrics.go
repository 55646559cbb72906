package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Publish outcomes
const (
	OutcomePublished = "published"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	findingsTotal   *prometheus.CounterVec
	publishTotal    *prometheus.CounterVec
	draftDuration   *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ratelimitHits   prometheus.Counter
	gatherer        prometheus.Gatherer
}

// NewMetrics registers collectors with reg, or the default registry when nil
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sentinel_findings_total", Help: "Sensitive data findings by category and pass"},
			[]string{"category", "pass"},
		),
		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sentinel_publish_total", Help: "Publish attempts by outcome"},
			[]string{"outcome"},
		),
		draftDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_draft_duration_seconds",
				Help:    "Draft generation latency in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"tone"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sentinel_http_requests_total", Help: "HTTP requests"},
			[]string{"route", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ratelimitHits: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "sentinel_ratelimit_hits_total", Help: "Requests rejected by the rate limiter"},
		),
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	m.gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		m.gatherer = reg
	}
	registerer.MustRegister(
		m.findingsTotal,
		m.publishTotal,
		m.draftDuration,
		m.requestsTotal,
		m.requestDuration,
		m.ratelimitHits,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveFindings counts findings per category for one detection pass
func (m *Metrics) ObserveFindings(pass string, counts map[string]int) {
	if m == nil {
		return
	}
	for category, n := range counts {
		m.findingsTotal.WithLabelValues(category, pass).Add(float64(n))
	}
}

// ObservePublish records the outcome of a publish attempt
func (m *Metrics) ObservePublish(outcome string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(outcome).Inc()
}

// ObserveDraft records a draft generation latency
func (m *Metrics) ObserveDraft(tone string, d time.Duration) {
	if m == nil {
		return
	}
	m.draftDuration.WithLabelValues(tone).Observe(d.Seconds())
}

// ObserveRequest records a completed HTTP request
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveRateLimited counts a throttled request
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.ratelimitHits.Inc()
}
