package credentials

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"traceability-explorer/pkg/logger"
)

// Require resolves outbound credentials and injects them into the request
// context. Failure to acquire credentials fails the request with 502.
func Require(r *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, err := r.Resolve(c.Request.Context(), c.GetHeader(HeaderAPIKeyOverride))
		if err != nil {
			logger.FromGin(c).Error("credential resolution failed", "err", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "getAuthHeaders: " + err.Error()})
			return
		}

		c.Request = c.Request.WithContext(WithCredentials(c.Request.Context(), creds))
		c.Set("credential_subject", creds.Subject())
		c.Next()
	}
}
