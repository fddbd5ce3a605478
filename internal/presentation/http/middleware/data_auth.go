package middleware

import (
	"net/http"
	"strings"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// DataAPIAuth protects the data-export endpoints. A request passes with
// either the static x-api-key or an admin JWT obtained via login.
func DataAPIAuth(authService *services.AuthService, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := c.GetHeader("x-api-key"); apiKey != "" {
			if config.DataAPIKey != "" && apiKey == config.DataAPIKey {
				c.Next()
				return
			}
			logger.Auth().Warn("Data API request with bad api key", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if authService.ValidateToken(token) {
				c.Next()
				return
			}
			logger.Auth().Warn("Data API request with invalid token", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}
