// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/container"
	"github.com/AuroraHealth/aurora-go/internal/presentation/http/handlers"
	"github.com/AuroraHealth/aurora-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	funnelHandlers := handlers.NewFunnelHandlers(container.FunnelService, container.Logger, container.PerfTracker)
	eventHandlers := handlers.NewEventHandlers(container.EventProcessingService, container.Logger, container.PerfTracker)
	exportHandlers := handlers.NewExportHandlers(container.ExportService, container.Logger, container.PerfTracker)
	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Logger, container.PerfTracker)
	dbHandlers := handlers.NewDBHandlers(container.DBService, container.Logger, container.PerfTracker)
	liveHandlers := handlers.NewLiveHandlers(container.Broadcaster, container.Logger)

	api := r.Group("/api/v1")
	{
		// Public endpoints
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
		})
		api.GET("/db/status", dbHandlers.GetDatabaseStatus)
		api.GET("/funnels/:slug", funnelHandlers.GetFunnel)
		api.POST("/funnel-response", eventHandlers.PostFunnelResponse)
		api.POST("/auth/login", authHandlers.PostLogin)

		// Protected data-export endpoints
		data := api.Group("/data")
		data.Use(middleware.DataAPIAuth(container.AuthService, container.Logger))
		{
			data.GET("/sessions", exportHandlers.GetSessions)
			data.GET("/responses", exportHandlers.GetResponses)
			data.GET("/stats", exportHandlers.GetStats)
		}

		// Protected admin endpoints
		admin := api.Group("/admin")
		admin.Use(middleware.DataAPIAuth(container.AuthService, container.Logger))
		{
			admin.GET("/live", liveHandlers.GetLiveFeed)
			admin.GET("/db/stats", dbHandlers.GetConnectionStats)
		}
	}

	return r
}
