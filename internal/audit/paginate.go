package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
)

// ErrHostNotConfigured is returned when no audit host is set.
var ErrHostNotConfigured = errors.New("AUDIT_API_HOST not set")

// Fetcher is the upstream call the paginator needs; *domino.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, creds credentials.Credentials, req domino.Request) (domino.Response, error)
}

type PaginatorConfig struct {
	Host  string
	Paths []string

	// MaxLimit is the upstream per-request page cap.
	MaxLimit int
	// Cap bounds the records fetched for one request.
	Cap     int
	Timeout time.Duration
}

// Paginator discovers a working audit path and drives paged fetches.
type Paginator struct {
	client Fetcher
	cfg    PaginatorConfig
	log    *slog.Logger
}

func NewPaginator(client Fetcher, cfg PaginatorConfig, log *slog.Logger) *Paginator {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	if cfg.Cap <= 0 {
		cfg.Cap = 50000
	}
	return &Paginator{client: client, cfg: cfg, log: log}
}

type Query struct {
	Limit  int
	Offset int
	// Filters are passed through verbatim (startTimestamp, endTimestamp, actorId, ...).
	Filters url.Values
}

type Page struct {
	Path   string
	Events []RawEvent
	// Pages counts upstream page requests, discovery attempts excluded.
	Pages int
	// Partial is set when a later page failed and accumulation stopped early.
	Partial bool
}

// ClampLimit bounds a requested total to [0, Cap].
func (p *Paginator) ClampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit > p.cfg.Cap {
		return p.cfg.Cap
	}
	return limit
}

func (p *Paginator) MaxLimit() int { return p.cfg.MaxLimit }

// Configured reports whether an audit host is set.
func (p *Paginator) Configured() bool { return p.cfg.Host != "" }

// Fetch returns up to q.Limit raw events. Failures during discovery are
// returned as errors; a failure on a later page yields a partial result.
func (p *Paginator) Fetch(ctx context.Context, creds credentials.Credentials, q Query) (Page, error) {
	if p.cfg.Host == "" {
		return Page{}, ErrHostNotConfigured
	}
	requested := p.ClampLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	size := min(requested, p.cfg.MaxLimit)
	path, first, err := p.discover(ctx, creds, q.Filters, size, offset)
	if err != nil {
		return Page{}, err
	}

	out := Page{Path: path, Events: first, Pages: 1}
	last := len(first)
	fetched := len(first)
	for len(out.Events) < requested && last >= size && size > 0 && fetched < p.cfg.Cap {
		size = min(p.cfg.MaxLimit, requested-len(out.Events))
		resp, err := p.get(ctx, creds, path, q.Filters, size, offset+fetched)
		if err != nil || !resp.OK() {
			out.Partial = true
			p.log.Warn("audit pagination stopped",
				"path", path, "offset", offset+fetched, "status", resp.Status, "err", err)
			break
		}
		page := rawEvents(resp)
		out.Pages++
		out.Events = append(out.Events, page...)
		last = len(page)
		fetched += last
	}
	if len(out.Events) > requested {
		out.Events = out.Events[:requested]
	}
	return out, nil
}

// discover tries each configured path in order. Success wins; a 404 moves to
// the next path; any other status or a transport error ends discovery.
func (p *Paginator) discover(ctx context.Context, creds credentials.Credentials, filters url.Values, size, offset int) (string, []RawEvent, error) {
	var last *domino.UpstreamError
	for _, path := range p.cfg.Paths {
		resp, err := p.get(ctx, creds, path, filters, size, offset)
		if err != nil {
			p.log.Warn("audit path failed", "path", path, "err", err)
			return "", nil, err
		}
		if resp.OK() {
			p.log.Debug("audit path selected", "path", path)
			return path, rawEvents(resp), nil
		}
		last = domino.ErrorFromResponse(resp)
		p.log.Warn("audit path rejected", "path", path, "status", resp.Status, "error", truncate(last.Message, 150))
		if resp.Status != http.StatusNotFound {
			return "", nil, last
		}
	}
	if last == nil {
		return "", nil, &domino.UpstreamError{Status: http.StatusBadGateway, Message: "no audit paths configured"}
	}
	last.Message = fmt.Sprintf("%s Try AUDIT_API_PATH env or contact your admin.", last.Message)
	return "", nil, last
}

func (p *Paginator) get(ctx context.Context, creds credentials.Credentials, path string, filters url.Values, limit, offset int) (domino.Response, error) {
	query := url.Values{}
	for k, v := range filters {
		if k == "limit" || k == "offset" {
			continue
		}
		query[k] = v
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	return p.client.Get(ctx, creds, domino.Request{
		Target:  "audit",
		Host:    p.cfg.Host,
		Path:    path,
		Query:   query,
		Timeout: p.cfg.Timeout,
	})
}

func rawEvents(resp domino.Response) []RawEvent {
	records := domino.ParseEvents(resp.Payload())
	out := make([]RawEvent, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
