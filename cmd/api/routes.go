package main

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/config"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
	"traceability-explorer/internal/enrichment"
	"traceability-explorer/internal/httpapi"
	"traceability-explorer/internal/metrics"
)

// registerRoutes builds the request pipeline from cfg and wires it to HTTP routes.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, cfg config.Config, m *metrics.Metrics, log *slog.Logger) {
	client := domino.NewClient(&http.Client{}, m)

	pager := audit.NewPaginator(client, audit.PaginatorConfig{
		Host:     cfg.Audit.Host,
		Paths:    cfg.AuditPaths(),
		MaxLimit: cfg.Audit.MaxLimit,
		Cap:      cfg.Audit.PaginationCap,
		Timeout:  cfg.Audit.Timeout,
	}, log)

	// Order is precedence: bulk first, then per-id sources fill what is left.
	en := cfg.Enrichment
	pipeline := enrichment.NewPipeline(m, log).
		Use(enrichment.NewControlCenter(client, cfg.Domino.APIHost, en.ControlCenter.Timeout, log), en.ControlCenter.Enabled).
		Use(enrichment.NewRuns(client, sourceOptions(cfg, en.Runs), log), en.Runs.Enabled).
		Use(enrichment.NewJobs(client, sourceOptions(cfg, en.Jobs), log), en.Jobs.Enabled)

	h := httpapi.Handlers{
		Audit:       audit.NewService(pager, pipeline, m, log),
		Domino:      client,
		DominoHost:  cfg.Domino.APIHost,
		AuditHost:   cfg.Audit.Host,
		AuditPaths:  cfg.AuditPaths(),
		Timeout:     cfg.Audit.Timeout,
		MockCSVPath: cfg.App.MockCSVPath,
	}
	resolver := credentials.NewResolver(cfg.Domino.APIKeyOverride, cfg.Domino.TokenURL, cfg.Domino.TokenTimeout, &http.Client{})

	httpapi.Register(r, h, httpapi.SPA{Dir: cfg.App.StaticDir}, credentials.Require(resolver))
}

func sourceOptions(cfg config.Config, src config.SourceConfig) enrichment.SourceOptions {
	return enrichment.SourceOptions{
		Host:        cfg.Domino.APIHost,
		MaxIDs:      src.MaxIDs,
		Timeout:     src.Timeout,
		Concurrency: cfg.Enrichment.Concurrency,
	}
}
