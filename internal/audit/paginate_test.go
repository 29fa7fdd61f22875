package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
	"traceability-explorer/pkg/logger"
)

// fakeAudit serves total events at path, honoring limit/offset. Every request
// is recorded.
type fakeAudit struct {
	mu       sync.Mutex
	total    int
	path     string
	statuses map[string]int
	failAt   int
	requests []string
}

func (f *fakeAudit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	f.mu.Lock()
	f.requests = append(f.requests, fmt.Sprintf("%s limit=%d offset=%d", r.URL.Path, limit, offset))
	f.mu.Unlock()

	if status, ok := f.statuses[r.URL.Path]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<html>not here</html>"))
		return
	}
	if r.URL.Path != f.path {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if f.failAt > 0 && offset >= f.failAt {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	events := []map[string]any{}
	for i := offset; i < offset+limit && i < f.total; i++ {
		events = append(events, map[string]any{"id": fmt.Sprintf("e%d", i), "timestamp": 1740415405000 + i})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"events": events})
}

func (f *fakeAudit) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newPaginator(t *testing.T, fake *fakeAudit, paths ...string) *Paginator {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewPaginator(domino.NewClient(srv.Client(), nil), PaginatorConfig{
		Host:     srv.URL,
		Paths:    paths,
		MaxLimit: 1000,
		Cap:      50000,
		Timeout:  5 * time.Second,
	}, logger.Discard())
}

var creds = credentials.APIKey("k")

func TestPaginator_SplitsIntoPages(t *testing.T) {
	fake := &fakeAudit{total: 10000, path: "/auditevents"}
	p := newPaginator(t, fake, "/auditevents")

	page, err := p.Fetch(context.Background(), creds, Query{Limit: 2500})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2500)
	assert.Equal(t, 3, page.Pages)
	assert.False(t, page.Partial)
	assert.Equal(t, []string{
		"/auditevents limit=1000 offset=0",
		"/auditevents limit=1000 offset=1000",
		"/auditevents limit=500 offset=2000",
	}, fake.calls())
	assert.Equal(t, "e2499", page.Events[2499]["id"])
}

func TestPaginator_StopsOnShortPage(t *testing.T) {
	fake := &fakeAudit{total: 1200, path: "/auditevents"}
	p := newPaginator(t, fake, "/auditevents")

	page, err := p.Fetch(context.Background(), creds, Query{Limit: 2500})
	require.NoError(t, err)
	assert.Len(t, page.Events, 1200)
	assert.Len(t, fake.calls(), 2)
}

func TestPaginator_StartsAtCallerOffset(t *testing.T) {
	fake := &fakeAudit{total: 5000, path: "/auditevents"}
	p := newPaginator(t, fake, "/auditevents")

	_, err := p.Fetch(context.Background(), creds, Query{Limit: 1500, Offset: 300})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/auditevents limit=1000 offset=300",
		"/auditevents limit=500 offset=1300",
	}, fake.calls())
}

func TestPaginator_LimitClampedToCap(t *testing.T) {
	fake := &fakeAudit{total: 100, path: "/a"}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	p := NewPaginator(domino.NewClient(srv.Client(), nil), PaginatorConfig{
		Host: srv.URL, Paths: []string{"/a"}, MaxLimit: 10, Cap: 25,
	}, logger.Discard())

	page, err := p.Fetch(context.Background(), creds, Query{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, page.Events, 25)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 0, p.ClampLimit(-5))
}

func TestPaginator_PartialResultOnFailedPage(t *testing.T) {
	fake := &fakeAudit{total: 5000, path: "/auditevents", failAt: 2000}
	p := newPaginator(t, fake, "/auditevents")

	page, err := p.Fetch(context.Background(), creds, Query{Limit: 3000})
	require.NoError(t, err)
	assert.True(t, page.Partial)
	assert.Len(t, page.Events, 2000)
}

func TestPaginator_DiscoveryFallsThroughOn404(t *testing.T) {
	fake := &fakeAudit{total: 3, path: "/v4/auditevents"}
	p := newPaginator(t, fake, "/api/audittrail/v1/auditevents", "/auditevents", "/v4/auditevents")

	page, err := p.Fetch(context.Background(), creds, Query{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "/v4/auditevents", page.Path)
	assert.Len(t, page.Events, 3)
	assert.Len(t, fake.calls(), 3)
}

func TestPaginator_DiscoveryStopsOnNon404(t *testing.T) {
	fake := &fakeAudit{
		total:    3,
		path:     "/v4/auditevents",
		statuses: map[string]int{"/auditevents": http.StatusForbidden},
	}
	p := newPaginator(t, fake, "/api/audittrail/v1/auditevents", "/auditevents", "/v4/auditevents")

	_, err := p.Fetch(context.Background(), creds, Query{Limit: 10})
	require.Error(t, err)
	var ue *domino.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusForbidden, ue.Status)
	assert.Contains(t, ue.Message, "HTML page")
	assert.Len(t, fake.calls(), 2, "third path must not be tried")
}

func TestPaginator_AllPathsNotFound(t *testing.T) {
	fake := &fakeAudit{path: "/elsewhere"}
	p := newPaginator(t, fake, "/a", "/b")

	_, err := p.Fetch(context.Background(), creds, Query{Limit: 10})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, domino.StatusOf(err))
	assert.Contains(t, err.Error(), "AUDIT_API_PATH")
}

func TestPaginator_RequiresHost(t *testing.T) {
	p := NewPaginator(domino.NewClient(nil, nil), PaginatorConfig{Paths: []string{"/a"}}, logger.Discard())
	_, err := p.Fetch(context.Background(), creds, Query{Limit: 10})
	assert.ErrorIs(t, err, ErrHostNotConfigured)
}

func TestPaginator_PassesFiltersThrough(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("actorId") + "|" + r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	p := NewPaginator(domino.NewClient(srv.Client(), nil), PaginatorConfig{Host: srv.URL, Paths: []string{"/a"}}, logger.Discard())

	_, err := p.Fetch(context.Background(), creds, Query{Limit: 5, Filters: map[string][]string{"actorId": {"u1"}, "limit": {"999"}}})
	require.NoError(t, err)
	assert.Equal(t, "u1|5", got)
}
