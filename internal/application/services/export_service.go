package services

import (
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/admin"
	"github.com/AuroraHealth/aurora-go/internal/domain/repositories"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/AuroraHealth/aurora-go/pkg/config"
)

const defaultExportLimit = 100

// ExportQuery is the request shape shared by the data-export endpoints.
// FunnelSlug is the public slug; the service resolves it to the row id.
type ExportQuery struct {
	FunnelSlug string
	Status     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	EmailOnly  bool
}

// ExportService runs the filtered exports behind the protected data API.
type ExportService struct {
	exportRepo  repositories.ExportRepository
	funnelRepo  repositories.FunnelRepository
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewExportService creates a new export service.
func NewExportService(
	exportRepo repositories.ExportRepository,
	funnelRepo repositories.FunnelRepository,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *ExportService {
	return &ExportService{
		exportRepo:  exportRepo,
		funnelRepo:  funnelRepo,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Sessions lists sessions matching the query, newest first.
func (s *ExportService) Sessions(query ExportQuery) ([]*admin.SessionSummary, error) {
	marker := s.perfTracker.StartOperation("export_sessions")
	defer marker.Complete()

	filter, err := s.buildFilter(query)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	sessions, err := s.exportRepo.Sessions(*filter)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetSuccess(true)
	return sessions, nil
}

// Responses lists answer rows matching the query, newest first.
func (s *ExportService) Responses(query ExportQuery) ([]*admin.ResponseExportRow, error) {
	marker := s.perfTracker.StartOperation("export_responses")
	defer marker.Complete()

	filter, err := s.buildFilter(query)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	responses, err := s.exportRepo.Responses(*filter)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetSuccess(true)
	return responses, nil
}

// Stats assembles the full stats payload for one funnel: overview,
// per-step drop-off, and answer distributions.
func (s *ExportService) Stats(slug string, from, to *time.Time) (*admin.FunnelStats, error) {
	marker := s.perfTracker.StartOperation("export_stats")
	defer marker.Complete()

	funnelID, err := s.funnelRepo.ResolveIDBySlug(slug)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if funnelID == "" {
		marker.SetSuccess(true)
		return nil, ErrUnknownFunnel
	}

	overview, err := s.exportRepo.Overview(funnelID, from, to)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	dropOff, err := s.exportRepo.StepDropOff(funnelID, from, to)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	distributions, err := s.exportRepo.AnswerDistributions(funnelID, from, to)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetSuccess(true)
	return &admin.FunnelStats{
		FunnelSlug:          slug,
		Overview:            *overview,
		StepDropOff:         dropOff,
		AnswerDistributions: distributions,
	}, nil
}

// buildFilter resolves the slug and normalizes pagination. A missing limit
// defaults low; any requested limit is capped.
func (s *ExportService) buildFilter(query ExportQuery) (*admin.SessionFilter, error) {
	filter := &admin.SessionFilter{
		Status:    query.Status,
		From:      query.From,
		To:        query.To,
		Limit:     query.Limit,
		Offset:    query.Offset,
		EmailOnly: query.EmailOnly,
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultExportLimit
	}
	if filter.Limit > config.ExportMaxLimit {
		filter.Limit = config.ExportMaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if query.FunnelSlug != "" {
		funnelID, err := s.funnelRepo.ResolveIDBySlug(query.FunnelSlug)
		if err != nil {
			return nil, err
		}
		if funnelID == "" {
			return nil, ErrUnknownFunnel
		}
		filter.FunnelID = funnelID
	}

	return filter, nil
}
