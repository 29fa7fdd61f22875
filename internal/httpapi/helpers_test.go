package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
	"traceability-explorer/internal/enrichment"
	"traceability-explorer/pkg/logger"
)

const (
	primaryPath  = "/api/audittrail/v1/auditevents"
	fallbackPath = "/auditevents"
)

// platform fakes the Domino API. Audit events live at fallbackPath only, so
// every audit request exercises path discovery.
type platform struct {
	mu sync.Mutex

	total       int
	auditStatus int
	auditBody   string

	me          string
	users       string
	usersStatus int

	auditQueries []url.Values
	apiKeys      []string
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.apiKeys = append(p.apiKeys, r.Header.Get(credentials.HeaderAPIKey))
	p.mu.Unlock()

	switch {
	case r.URL.Path == fallbackPath:
		p.mu.Lock()
		p.auditQueries = append(p.auditQueries, r.URL.Query())
		p.mu.Unlock()
		if p.auditStatus != 0 {
			w.WriteHeader(p.auditStatus)
			_, _ = w.Write([]byte(p.auditBody))
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		events := []map[string]any{}
		for i := offset; i < offset+limit && i < p.total; i++ {
			events = append(events, map[string]any{
				"id":        fmt.Sprintf("e%d", i),
				"timestamp": 1740415405000 + i,
				"action":    map[string]any{"eventName": "Run Started"},
				"metadata":  map[string]any{"runId": fmt.Sprintf("run-%d", i)},
			})
		}
		writeJSON(w, map[string]any{"events": events})
	case strings.HasPrefix(r.URL.Path, "/v4/runs/"):
		id := strings.TrimPrefix(r.URL.Path, "/v4/runs/")
		writeJSON(w, map[string]any{"command": "python " + id + ".py", "status": "Succeeded"})
	case r.URL.Path == domino.PathSelf && p.me != "":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(p.me))
	case r.URL.Path == domino.PathUsers && p.usersStatus != 0:
		w.WriteHeader(p.usersStatus)
	case r.URL.Path == domino.PathUsers && p.users != "":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(p.users))
	default:
		http.NotFound(w, r)
	}
}

func (p *platform) queries() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.auditQueries...)
}

func (p *platform) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.apiKeys...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fixedNow is 2025-02-25T10:00:00Z.
var fixedNow = time.UnixMilli(1740477600000).UTC()

func newHandlers(t *testing.T, p *platform) Handlers {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	log := logger.Discard()
	client := domino.NewClient(srv.Client(), nil)
	paths := []string{primaryPath, fallbackPath}
	pager := audit.NewPaginator(client, audit.PaginatorConfig{
		Host:     srv.URL,
		Paths:    paths,
		MaxLimit: 2,
		Cap:      100,
		Timeout:  5 * time.Second,
	}, log)
	pipeline := enrichment.NewPipeline(nil, log).
		Use(enrichment.NewControlCenter(client, srv.URL, 5*time.Second, log), false).
		Use(enrichment.NewRuns(client, enrichment.SourceOptions{Host: srv.URL, Concurrency: 2}, log), true)

	return Handlers{
		Audit:      audit.NewService(pager, pipeline, nil, log),
		Domino:     client,
		DominoHost: srv.URL,
		AuditHost:  srv.URL,
		AuditPaths: paths,
		Timeout:    5 * time.Second,
		Now:        func() time.Time { return fixedNow },
	}
}

func staticKey() gin.HandlerFunc {
	return credentials.Require(credentials.NewResolver("test-key", "", 0, nil))
}

func newRouter(h Handlers, spa SPA, requireCreds gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, h, spa, requireCreds)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}
