package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"traceability-explorer/internal/config"
	"traceability-explorer/internal/httpapi"
	"traceability-explorer/internal/metrics"
	"traceability-explorer/internal/tracing"
	"traceability-explorer/pkg/logger"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tp, err := tracing.NewProvider(rootCtx, tracing.Config{
		Enabled:      cfg.Telemetry.TracingEnabled,
		Environment:  cfg.App.Env,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SamplingRate: cfg.Telemetry.TracingSampleRate,
		Insecure:     !cfg.IsProduction(),
	}, log)
	if err != nil {
		log.Error("tracing init failed", "err", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Telemetry.MetricsEnabled {
		m = metrics.New()
		if err := m.Register(reg); err != nil {
			log.Error("metrics init failed", "err", err)
			os.Exit(1)
		}
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	registerRoutes(r, cfg, m, log)
	logStartup(log, cfg)

	// Paginated audit requests with enrichment can take minutes.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           otelhttp.NewHandler(r, tracing.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "err", err)
	}
}

// logStartup reports what the process will serve so a misconfigured
// deployment is obvious from the first log lines.
func logStartup(log *slog.Logger, cfg config.Config) {
	layout := httpapi.SPA{Dir: cfg.App.StaticDir}.Layout()
	log.Info("frontend",
		"dir", layout.Dir,
		"dist_exists", layout.Dist,
		"assets_exists", layout.Assets,
		"index_exists", layout.Index,
	)
	if !layout.Index {
		log.Warn("frontend not built; the catch-all route will answer 503")
	}

	if cfg.Domino.APIHost == "" {
		log.Warn("DOMINO_API_HOST not set; users, me and enrichment are unavailable")
	}
	log.Info("audit upstream",
		"domino_host", cfg.Domino.APIHost,
		"audit_host", cfg.Audit.Host,
		"audit_paths", cfg.AuditPaths(),
		"max_limit", cfg.Audit.MaxLimit,
		"pagination_cap", cfg.Audit.PaginationCap,
	)
	log.Info("enrichment",
		"control_center", cfg.Enrichment.ControlCenter.Enabled,
		"runs", cfg.Enrichment.Runs.Enabled,
		"jobs", cfg.Enrichment.Jobs.Enabled,
		"concurrency", cfg.Enrichment.Concurrency,
	)
	log.Info("credentials",
		"api_key_override", cfg.Domino.APIKeyOverride != "",
		"token_url", cfg.Domino.TokenURL,
	)
}
