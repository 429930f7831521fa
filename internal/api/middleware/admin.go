package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/logger"
)

// DefaultAdminHeader is used when admin.header is not configured.
const DefaultAdminHeader = "X-Admin-Token"

// AdminAuth rejects requests that do not carry the shared admin token.
// With no token configured every request is refused with 403; a missing or
// wrong token gets 401. Both abort before any handler runs.
func AdminAuth(cfg config.AdminConfig) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = DefaultAdminHeader
	}
	expected := []byte(cfg.Token)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access is not configured"})
			return
		}
		provided := []byte(c.GetHeader(header))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.CtxWarn(c.Request.Context(), "Rejected admin request: path=%s, client_ip=%s",
				c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
