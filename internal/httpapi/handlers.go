package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
	"traceability-explorer/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse query input, call internal services, return JSON.
type Handlers struct {
	Audit *audit.Service
	// Domino serves the passthrough and diagnostic calls.
	Domino audit.Fetcher

	DominoHost string
	AuditHost  string
	AuditPaths []string
	Timeout    time.Duration

	MockCSVPath string

	// Now is overridable in tests.
	Now func() time.Time
}

// ErrDominoHostNotConfigured is returned by handlers that call the platform API directly.
var ErrDominoHostNotConfigured = errors.New("DOMINO_API_HOST not set")

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps an error to a status and writes {"error": message}.
func respondError(c *gin.Context, err error) {
	status := domino.StatusOf(err)
	switch {
	case errors.Is(err, audit.ErrHostNotConfigured), errors.Is(err, ErrDominoHostNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, audit.ErrInvalidQuery):
		status = http.StatusBadRequest
	}
	respondErrorStatus(c, status, err)
}

func respondErrorStatus(c *gin.Context, status int, err error) {
	logger.FromGin(c).Warn("request failed", "status", status, "err", err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// requestCredentials reads what credentials.Require injected.
func requestCredentials(c *gin.Context) (credentials.Credentials, bool) {
	creds, err := credentials.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "getAuthHeaders: " + err.Error()})
		return credentials.Credentials{}, false
	}
	return creds, true
}

// intQuery parses an integer query value; absent or malformed values yield def.
func intQuery(c *gin.Context, key string, def int) int {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// int64Query parses an optional int64 query value.
func int64Query(c *gin.Context, key string) (*int64, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
