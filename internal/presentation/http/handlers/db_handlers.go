package handlers

import (
	"net/http"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// DatabaseHandlers contains all database-related HTTP handlers.
type DatabaseHandlers struct {
	dbService   *services.DBService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDBHandlers creates database handlers with injected dependencies.
func NewDBHandlers(dbService *services.DBService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DatabaseHandlers {
	return &DatabaseHandlers{
		dbService:   dbService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetDatabaseStatus handles GET /api/v1/db/status.
func (h *DatabaseHandlers) GetDatabaseStatus(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("get_database_status_request")
	defer marker.Complete()

	status := h.dbService.CheckStatus()

	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		h.logger.System().Error("Database status check failed", "error", errMsg, "duration", time.Since(start))
		marker.SetSuccess(false)
		c.JSON(http.StatusOK, status)
		return
	}

	h.logger.System().Debug("Database status check completed",
		"status", status["status"],
		"duration", time.Since(start))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, status)
}

// GetConnectionStats handles GET /api/v1/db/stats.
func (h *DatabaseHandlers) GetConnectionStats(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_connection_stats_request")
	defer marker.Complete()

	stats := h.dbService.GetConnectionStats()
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
