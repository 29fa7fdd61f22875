package httpapi

import (
	"github.com/gin-gonic/gin"

	"traceability-explorer/internal/audit"
)

// Register wires the HTTP surface. requireCreds resolves outbound credentials
// for routes that call the platform; the SPA catch-all goes last.
func Register(r *gin.Engine, h Handlers, spa SPA, requireCreds gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/audit/mock", h.MockAudit)

	// Hosts are checked first so an unconfigured deployment answers 503
	// without a round trip to the token endpoint.
	audited := api.Group("", h.RequireAuditHost, requireCreds)
	{
		audited.GET("/audit", h.ListAudit)
		audited.GET("/audit/raw-sample", h.RawSample)
		audited.GET("/audit/coverage", h.Coverage)
	}

	platform := api.Group("", h.RequireDominoHost, requireCreds)
	{
		platform.GET("/users", h.Users)
		platform.GET("/me", h.Me)
		platform.GET("/test", h.Diagnostics)
	}

	r.NoRoute(spa.Serve)
}

// RequireDominoHost aborts with 503 when the platform host is not configured.
func (h Handlers) RequireDominoHost(c *gin.Context) {
	if h.DominoHost == "" || h.Domino == nil {
		respondError(c, ErrDominoHostNotConfigured)
		return
	}
	c.Next()
}

// RequireAuditHost aborts with 503 when no audit host is configured.
func (h Handlers) RequireAuditHost(c *gin.Context) {
	if h.Audit == nil || !h.Audit.Configured() {
		respondError(c, audit.ErrHostNotConfigured)
		return
	}
	c.Next()
}
