package enrichment

import (
	"context"
	"sync"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
)

// routes maps "path" or "path?query" to a canned response; unknown paths 404.
type fakeDomino struct {
	mu     sync.Mutex
	routes map[string]domino.Response
	errs   map[string]error
	calls  []string
}

func (f *fakeDomino) Get(_ context.Context, _ credentials.Credentials, req domino.Request) (domino.Response, error) {
	key := req.Path
	if len(req.Query) > 0 {
		key += "?" + req.Query.Encode()
	}
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if err, ok := f.errs[req.Path]; ok {
		return domino.Response{}, err
	}
	if r, ok := f.routes[key]; ok {
		return r, nil
	}
	if r, ok := f.routes[req.Path]; ok {
		return r, nil
	}
	return domino.Response{Status: 404}, nil
}

func (f *fakeDomino) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func ok(body string) domino.Response {
	return domino.Response{Status: 200, ContentType: "application/json", Body: []byte(body)}
}

func status(code int) domino.Response {
	return domino.Response{Status: code, Body: []byte("boom")}
}

func ev(runID, jobID string) audit.Event {
	return audit.Event{RunID: audit.String(runID), JobID: audit.String(jobID)}
}

func ts(ms int64) *int64 { return &ms }
