package enrichment

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/metrics"
)

var tracer = otel.Tracer("traceability-explorer/internal/enrichment")

// Source is one enrichment stage.
type Source interface {
	Name() string
	Enrich(ctx context.Context, creds credentials.Credentials, events []audit.Event) ([]audit.Event, audit.StageReport)
}

type stage struct {
	src     Source
	enabled bool
}

// Pipeline runs stages in the order they were added. Because every stage
// fills blanks only, earlier stages take precedence over later ones.
type Pipeline struct {
	stages  []stage
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewPipeline(m *metrics.Metrics, log *slog.Logger) *Pipeline {
	return &Pipeline{metrics: m, log: log}
}

// Use appends a stage. Disabled stages are reported but never called.
func (p *Pipeline) Use(src Source, enabled bool) *Pipeline {
	p.stages = append(p.stages, stage{src: src, enabled: enabled})
	return p
}

// Enrich satisfies audit.Enricher.
func (p *Pipeline) Enrich(ctx context.Context, creds credentials.Credentials, events []audit.Event) ([]audit.Event, []audit.StageReport) {
	reports := make([]audit.StageReport, 0, len(p.stages))
	for _, s := range p.stages {
		if !s.enabled {
			reports = append(reports, audit.StageReport{Stage: s.src.Name(), Status: StatusDisabled})
			continue
		}
		if ctx.Err() != nil {
			reports = append(reports, audit.StageReport{Stage: s.src.Name(), Status: StatusSkipped, Detail: ctx.Err().Error()})
			continue
		}
		stageCtx, span := tracer.Start(ctx, "enrichment."+s.src.Name())
		var rep audit.StageReport
		events, rep = s.src.Enrich(stageCtx, creds, events)
		span.SetAttributes(
			attribute.String("enrichment.status", rep.Status),
			attribute.Int("enrichment.resolved", rep.Resolved),
			attribute.Int("enrichment.filled", rep.Filled),
		)
		span.End()
		p.metrics.ObserveEnrichment(rep.Stage, rep.Status, rep.Filled)
		if rep.Status == StatusUnavailable {
			p.log.Warn("enrichment stage unavailable", "stage", rep.Stage, "detail", rep.Detail)
		}
		reports = append(reports, rep)
	}
	return events, reports
}

// Header renders reports as "stage=status" pairs for a response header.
func Header(reports []audit.StageReport) string {
	parts := make([]string, 0, len(reports))
	for _, r := range reports {
		parts = append(parts, r.Stage+"="+r.Status)
	}
	return strings.Join(parts, ", ")
}
