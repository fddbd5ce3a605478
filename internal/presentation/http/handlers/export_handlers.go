package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// ExportHandlers serves the protected data-export endpoints.
type ExportHandlers struct {
	exportService *services.ExportService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewExportHandlers creates export handlers with injected dependencies.
func NewExportHandlers(exportService *services.ExportService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ExportHandlers {
	return &ExportHandlers{
		exportService: exportService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// GetSessions handles GET /api/v1/data/sessions.
func (h *ExportHandlers) GetSessions(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_sessions_request")
	defer marker.Complete()

	query, ok := h.parseQuery(c)
	if !ok {
		return
	}

	sessions, err := h.exportService.Sessions(*query)
	if err != nil {
		h.respondError(c, marker, err, "Sessions export failed")
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetResponses handles GET /api/v1/data/responses.
func (h *ExportHandlers) GetResponses(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_responses_request")
	defer marker.Complete()

	query, ok := h.parseQuery(c)
	if !ok {
		return
	}

	responses, err := h.exportService.Responses(*query)
	if err != nil {
		h.respondError(c, marker, err, "Responses export failed")
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"responses": responses,
		"count":     len(responses),
	})
}

// GetStats handles GET /api/v1/data/stats. The funnel query parameter is
// required; stats for "all funnels at once" is not a supported shape.
func (h *ExportHandlers) GetStats(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_stats_request")
	defer marker.Complete()

	slug := c.Query("funnel")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "funnel query parameter is required"})
		return
	}

	from, to, ok := h.parseDateRange(c)
	if !ok {
		return
	}

	stats, err := h.exportService.Stats(slug, from, to)
	if err != nil {
		h.respondError(c, marker, err, "Stats export failed")
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, stats)
}

func (h *ExportHandlers) parseQuery(c *gin.Context) (*services.ExportQuery, bool) {
	query := &services.ExportQuery{
		FunnelSlug: c.Query("funnel"),
		Status:     c.Query("status"),
		EmailOnly:  c.Query("email_only") == "true",
	}

	if query.Status != "" && query.Status != "completed" && query.Status != "incomplete" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be completed or incomplete"})
		return nil, false
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return nil, false
		}
		query.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return nil, false
		}
		query.Offset = offset
	}

	from, to, ok := h.parseDateRange(c)
	if !ok {
		return nil, false
	}
	query.From = from
	query.To = to

	return query, true
}

func (h *ExportHandlers) parseDateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	var from, to *time.Time

	if raw := c.Query("from"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return nil, nil, false
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return nil, nil, false
		}
		to = &t
	}

	return from, to, true
}

func (h *ExportHandlers) respondError(c *gin.Context, marker *performance.Marker, err error, logMessage string) {
	if errors.Is(err, services.ErrUnknownFunnel) {
		marker.SetSuccess(true)
		c.JSON(http.StatusNotFound, gin.H{"error": "funnel not found"})
		return
	}
	h.logger.System().Error(logMessage, "error", err.Error())
	marker.SetError(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
}

// parseDateParam accepts RFC3339 or a bare YYYY-MM-DD date.
func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
