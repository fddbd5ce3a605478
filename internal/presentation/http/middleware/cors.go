package middleware

import (
	"github.com/AuroraHealth/aurora-go/pkg/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware provides CORS configuration for the funnel frontend.
// CORS_ORIGINS lists the allowed origins; the default "*" opens the API up,
// which is fine for ingestion but should be narrowed in production.
func CORSMiddleware() gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Requested-With", "x-api-key",
		},
		ExposeHeaders: []string{
			"Content-Type", "Cache-Control",
		},
	}

	if len(config.CORSOrigins) == 1 && config.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.CORSOrigins
		corsConfig.AllowCredentials = true
	}

	return cors.New(corsConfig)
}
