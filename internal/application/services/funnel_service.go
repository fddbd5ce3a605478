package services

import (
	"github.com/AuroraHealth/aurora-go/internal/domain/funnel"
	"github.com/AuroraHealth/aurora-go/internal/domain/repositories"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/caching"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
)

// FunnelService serves funnel definitions through the TTL cache.
type FunnelService struct {
	repo        repositories.FunnelRepository
	cache       *caching.DefinitionCache
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewFunnelService creates a new funnel service.
func NewFunnelService(
	repo repositories.FunnelRepository,
	cache *caching.DefinitionCache,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *FunnelService {
	return &FunnelService{
		repo:        repo,
		cache:       cache,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetDefinition returns the definition for a slug, or (nil, nil) when the
// slug is unknown. Unknown slugs are not cached; a funnel published after a
// miss becomes visible immediately.
func (s *FunnelService) GetDefinition(slug string) (*funnel.Definition, error) {
	if def, hit := s.cache.Get(slug); hit {
		return def, nil
	}

	marker := s.perfTracker.StartOperation("funnel_definition_load")
	defer marker.Complete()

	def, err := s.repo.FindBySlug(slug)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if def == nil {
		marker.SetSuccess(true)
		return nil, nil
	}

	s.cache.Set(slug, def)
	marker.SetSuccess(true)
	s.logger.Funnel().Debug("Funnel definition loaded", "slug", slug, "steps", len(def.Steps))
	return def, nil
}

// InvalidateDefinition drops one slug from the cache after an edit.
func (s *FunnelService) InvalidateDefinition(slug string) {
	s.cache.Invalidate(slug)
}
