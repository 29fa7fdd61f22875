package audit

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/metrics"
)

// StageReport describes what one enrichment stage did for a request.
type StageReport struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	// IDs is the number of distinct ids (or records, for bulk stages) looked up.
	IDs int `json:"ids"`
	// Resolved is the number of ids that returned a usable record.
	Resolved int `json:"resolved"`
	// Events is the number of events that matched a resolved record.
	Events int `json:"events"`
	// Filled is the number of blank fields that were filled.
	Filled int    `json:"filled"`
	Detail string `json:"detail,omitempty"`
}

// Enricher backfills blank fields. It must not fail the request.
type Enricher interface {
	Enrich(ctx context.Context, creds credentials.Credentials, events []Event) ([]Event, []StageReport)
}

var tracer = otel.Tracer("traceability-explorer/internal/audit")

// Service is the request pipeline: paginate, normalize, enrich.
type Service struct {
	pager    *Paginator
	enricher Enricher
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewService(pager *Paginator, enricher Enricher, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{pager: pager, enricher: enricher, metrics: m, log: log}
}

type Result struct {
	Events  []Event
	Reports []StageReport
	Path    string
	Pages   int
	Partial bool
}

var ErrInvalidQuery = errors.New("audit: invalid query")

func (s *Service) List(ctx context.Context, creds credentials.Credentials, q Query) (Result, error) {
	if s.pager == nil {
		return Result{}, errors.New("audit: paginator not configured")
	}
	if q.Offset < 0 {
		return Result{}, ErrInvalidQuery
	}

	ctx, span := tracer.Start(ctx, "audit.list")
	defer span.End()

	page, err := s.pager.Fetch(ctx, creds, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit fetch failed")
		return Result{}, err
	}
	events := NormalizeAll(page.Events)
	span.SetAttributes(
		attribute.String("audit.path", page.Path),
		attribute.Int("audit.pages", page.Pages),
		attribute.Int("audit.events", len(events)),
		attribute.Bool("audit.partial", page.Partial),
	)

	var reports []StageReport
	if s.enricher != nil {
		events, reports = s.enricher.Enrich(ctx, creds, events)
	}
	s.metrics.ObserveAuditFetch(page.Pages, len(events))
	s.log.Info("audit events served",
		"path", page.Path, "pages", page.Pages, "events", len(events), "partial", page.Partial)

	return Result{
		Events:  events,
		Reports: reports,
		Path:    page.Path,
		Pages:   page.Pages,
		Partial: page.Partial,
	}, nil
}

// Sample returns up to limit raw upstream events without normalizing them.
func (s *Service) Sample(ctx context.Context, creds credentials.Credentials, limit int, filters map[string][]string) ([]RawEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, s.pager.MaxLimit())
	page, err := s.pager.Fetch(ctx, creds, Query{Limit: limit, Filters: filters})
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}

// DefaultLimit is the limit applied when the caller sends none.
func (s *Service) DefaultLimit() int { return s.pager.MaxLimit() }

func (s *Service) Configured() bool { return s.pager.Configured() }

// ClampLimit bounds a requested limit to the pagination cap.
func (s *Service) ClampLimit(limit int) int { return s.pager.ClampLimit(limit) }
