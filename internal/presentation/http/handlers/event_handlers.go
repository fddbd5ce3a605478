package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/domain/analytics"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// EventHandlers ingests funnel analytics events.
type EventHandlers struct {
	eventService *services.EventProcessingService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewEventHandlers creates event handlers with injected dependencies.
func NewEventHandlers(eventService *services.EventProcessingService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EventHandlers {
	return &EventHandlers{
		eventService: eventService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// PostFunnelResponse handles POST /api/v1/funnel-response - the single
// ingestion endpoint for all five event kinds.
func (h *EventHandlers) PostFunnelResponse(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("post_funnel_response_request")
	defer marker.Complete()

	var event analytics.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Ingest().Error("Event JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if event.Type == "" || event.SessionToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and session_id are required"})
		return
	}

	meta := services.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	result, err := h.eventService.ProcessEvent(&event, meta)
	if err != nil {
		if errors.Is(err, services.ErrUnknownFunnel) {
			marker.SetSuccess(true)
			c.JSON(http.StatusNotFound, gin.H{"error": "funnel not found"})
			return
		}
		h.logger.Ingest().Error("Event processing failed",
			"type", string(event.Type),
			"sessionToken", logging.SanitizeSessionToken(event.SessionToken),
			"error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	h.logger.Ingest().Debug("Event processed",
		"type", string(event.Type),
		"status", result.Status,
		"duration", time.Since(start))
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, result)
}
