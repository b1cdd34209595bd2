package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/internal/auth"
)

// extractToken pulls a bearer token from the Authorization header or the
// token query parameter (used by snapshot links embedded in the UI).
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a valid token. A no-op when
// authentication is disabled.
func RequireAuth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authSvc.Enabled() {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		if _, err := authSvc.Verify(token); err != nil {
			log.WithError(err).Debug("Rejected request with invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}
}

// RequireScope rejects requests whose token is not scoped to the given
// route. Unscoped tokens (full credentials) pass as well.
func RequireScope(authSvc *auth.Service, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authSvc.Enabled() {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		route, err := authSvc.Verify(token)
		if err != nil {
			log.WithError(err).Debug("Rejected request with invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if route != "" && route != scope {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token not valid for this route"})
			return
		}

		c.Next()
	}
}
