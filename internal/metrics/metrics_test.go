package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestMetrics_ObserveUpstreamLabels(t *testing.T) {
	m := New()
	m.ObserveUpstream("audit", 200, 10*time.Millisecond)
	m.ObserveUpstream("audit", 0, time.Millisecond)

	if got := testutil.ToFloat64(m.upstreamTotal.WithLabelValues("audit", "200")); got != 1 {
		t.Fatalf("expected 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(m.upstreamTotal.WithLabelValues("audit", "error")); got != 1 {
		t.Fatalf("expected 1 transport error, got %v", got)
	}
}

func TestMetrics_ObserveEnrichment(t *testing.T) {
	m := New()
	m.ObserveEnrichment("runs", "applied", 3)
	m.ObserveEnrichment("runs", "empty", 0)
	if got := testutil.ToFloat64(m.enrichmentFields.WithLabelValues("runs")); got != 3 {
		t.Fatalf("expected 3 filled, got %v", got)
	}
	if got := testutil.ToFloat64(m.enrichmentStages.WithLabelValues("runs", "empty")); got != 1 {
		t.Fatalf("expected 1 empty stage, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveUpstream("audit", 500, time.Second)
	m.ObserveEnrichment("jobs", "applied", 1)
	m.ObserveAuditFetch(1, 1)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMetrics_MiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/audit", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit?limit=5", nil))
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/audit", "200")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}
