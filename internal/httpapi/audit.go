package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/enrichment"
)

// Response headers describing how an audit response was assembled.
const (
	HeaderEnrichmentStatus = "X-Enrichment-Status"
	HeaderAuditPath        = "X-Audit-Path"
	HeaderAuditPages       = "X-Audit-Pages"
	HeaderAuditPartial     = "X-Audit-Partial"
)

// ListAudit serves GET /api/audit: paginated, normalized and enriched events.
// Query: limit (default upstream max), offset, and passthrough filters such as
// startTimestamp, endTimestamp and actorId.
func (h Handlers) ListAudit(c *gin.Context) {
	if h.Audit == nil {
		respondError(c, audit.ErrHostNotConfigured)
		return
	}
	creds, ok := requestCredentials(c)
	if !ok {
		return
	}

	res, err := h.Audit.List(c.Request.Context(), creds, audit.Query{
		Limit:   intQuery(c, "limit", h.Audit.DefaultLimit()),
		Offset:  intQuery(c, "offset", 0),
		Filters: c.Request.URL.Query(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	writeResultHeaders(c, res)
	events := res.Events
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, events)
}

func writeResultHeaders(c *gin.Context, res audit.Result) {
	if len(res.Reports) > 0 {
		c.Header(HeaderEnrichmentStatus, enrichment.Header(res.Reports))
	}
	c.Header(HeaderAuditPath, res.Path)
	c.Header(HeaderAuditPages, strconv.Itoa(res.Pages))
	if res.Partial {
		c.Header(HeaderAuditPartial, "true")
	}
}

// MockAudit serves GET /api/audit/mock from the local CSV export.
// limit defaults to all rows; startTimestamp/endTimestamp filter only when both parse.
func (h Handlers) MockAudit(c *gin.Context) {
	q := audit.MockQuery{Limit: intQuery(c, "limit", 0)}
	from, okFrom := int64Query(c, "startTimestamp")
	to, okTo := int64Query(c, "endTimestamp")
	if okFrom && okTo {
		q.From, q.To = from, to
	}

	events, err := audit.LoadMock(h.MockCSVPath, q)
	if err != nil {
		respondErrorStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// RawSample serves GET /api/audit/raw-sample: upstream events as received,
// for offline analysis of the payload shapes a deployment emits.
func (h Handlers) RawSample(c *gin.Context) {
	if h.Audit == nil {
		respondError(c, audit.ErrHostNotConfigured)
		return
	}
	creds, ok := requestCredentials(c)
	if !ok {
		return
	}

	events, err := h.Audit.Sample(c.Request.Context(), creds, intQuery(c, "limit", 20), c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	if events == nil {
		events = []audit.RawEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

// Coverage serves GET /api/audit/coverage: how many served events carry each
// extracted field after normalization and enrichment.
func (h Handlers) Coverage(c *gin.Context) {
	if h.Audit == nil {
		respondError(c, audit.ErrHostNotConfigured)
		return
	}
	creds, ok := requestCredentials(c)
	if !ok {
		return
	}

	res, err := h.Audit.List(c.Request.Context(), creds, audit.Query{
		Limit:   intQuery(c, "limit", h.Audit.DefaultLimit()),
		Offset:  intQuery(c, "offset", 0),
		Filters: c.Request.URL.Query(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	writeResultHeaders(c, res)
	reports := res.Reports
	if reports == nil {
		reports = []audit.StageReport{}
	}
	c.JSON(http.StatusOK, gin.H{
		"path":       res.Path,
		"pages":      res.Pages,
		"partial":    res.Partial,
		"coverage":   audit.Coverage(res.Events),
		"enrichment": reports,
	})
}
