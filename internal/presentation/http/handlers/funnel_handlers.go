// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// FunnelHandlers serves public funnel definitions.
type FunnelHandlers struct {
	funnelService *services.FunnelService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewFunnelHandlers creates funnel handlers with injected dependencies.
func NewFunnelHandlers(funnelService *services.FunnelService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *FunnelHandlers {
	return &FunnelHandlers{
		funnelService: funnelService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// GetFunnel handles GET /api/v1/funnels/:slug - serves the full definition
// the client state machine runs against.
func (h *FunnelHandlers) GetFunnel(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("get_funnel_request")
	defer marker.Complete()

	slug := c.Param("slug")

	def, err := h.funnelService.GetDefinition(slug)
	if err != nil {
		h.logger.Funnel().Error("Funnel definition load failed", "slug", slug, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load funnel"})
		return
	}
	if def == nil {
		marker.SetSuccess(true)
		c.JSON(http.StatusNotFound, gin.H{"error": "funnel not found"})
		return
	}

	h.logger.Funnel().Debug("Funnel definition served", "slug", slug, "duration", time.Since(start))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, def)
}
