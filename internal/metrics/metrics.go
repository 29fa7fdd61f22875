// Package metrics holds the Prometheus collectors for inbound requests,
// upstream Domino calls and enrichment stages.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricHTTPRequestsTotal       = "http_requests_total"
	MetricHTTPRequestDuration     = "http_request_duration_seconds"
	MetricUpstreamRequestsTotal   = "domino_upstream_requests_total"
	MetricUpstreamRequestDuration = "domino_upstream_request_duration_seconds"
	MetricEnrichmentStagesTotal   = "enrichment_stages_total"
	MetricEnrichmentFieldsFilled  = "enrichment_fields_filled_total"
	MetricAuditEventsPerRequest   = "audit_events_per_request"
	MetricAuditPagesPerRequest    = "audit_pages_per_request"
)

// Metrics is safe for concurrent use. A nil *Metrics is a no-op so that
// components and tests can run without a registry.
type Metrics struct {
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	upstreamTotal         *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	enrichmentStages      *prometheus.CounterVec
	enrichmentFields      *prometheus.CounterVec
	auditEventsPerRequest prometheus.Histogram
	auditPagesPerRequest  prometheus.Histogram
}

// New creates the collectors. They are not registered; call Register.
func New() *Metrics {
	return &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0, 5.0, 15.0, 30.0},
			},
			[]string{"method", "path"},
		),
		upstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUpstreamRequestsTotal,
				Help: "Total number of upstream Domino API calls by target and status code",
			},
			[]string{"target", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricUpstreamRequestDuration,
				Help:    "Upstream Domino API call duration in seconds by target",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"target"},
		),
		enrichmentStages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEnrichmentStagesTotal,
				Help: "Enrichment stage runs by stage and outcome",
			},
			[]string{"stage", "status"},
		),
		enrichmentFields: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEnrichmentFieldsFilled,
				Help: "Number of blank canonical fields filled by each enrichment stage",
			},
			[]string{"stage"},
		),
		auditEventsPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricAuditEventsPerRequest,
				Help:    "Number of normalized audit events returned per request",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		auditPagesPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricAuditPagesPerRequest,
				Help:    "Number of upstream audit pages fetched per request",
				Buckets: []float64{1, 2, 5, 10, 25, 50},
			},
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamTotal,
		m.upstreamDuration,
		m.enrichmentStages,
		m.enrichmentFields,
		m.auditEventsPerRequest,
		m.auditPagesPerRequest,
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveUpstream records one upstream call. status 0 means transport failure.
func (m *Metrics) ObserveUpstream(target string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamTotal.WithLabelValues(target, label).Inc()
	m.upstreamDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (m *Metrics) ObserveEnrichment(stage, status string, filled int) {
	if m == nil {
		return
	}
	m.enrichmentStages.WithLabelValues(stage, status).Inc()
	if filled > 0 {
		m.enrichmentFields.WithLabelValues(stage).Add(float64(filled))
	}
}

func (m *Metrics) ObserveAuditFetch(pages, events int) {
	if m == nil {
		return
	}
	m.auditPagesPerRequest.Observe(float64(pages))
	m.auditEventsPerRequest.Observe(float64(events))
}

// Middleware records request count and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
