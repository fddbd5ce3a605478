// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/AuroraHealth/aurora-go/internal/application/services"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/caching"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/capi"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/email"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/messaging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/analytics"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/content"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/tracking"
	"github.com/AuroraHealth/aurora-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies.
type Container struct {
	// Application services (stateless singletons)
	FunnelService          *services.FunnelService
	EventProcessingService *services.EventProcessingService
	ExportService          *services.ExportService
	AuthService            *services.AuthService
	DBService              *services.DBService

	// Infrastructure
	Logger          *logging.ChanneledLogger
	PerfTracker     *performance.Tracker
	DB              *database.DB
	DefinitionCache *caching.DefinitionCache
	Broadcaster     *messaging.EventBroadcaster
	EmailService    email.Service // nil when not configured
	CAPIService     capi.Service  // nil when not configured
}

// NewContainer creates and wires all singleton services.
func NewContainer() (*Container, error) {
	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.DefaultLevel = logging.ParseLevel(config.LogLevel)
	if config.LogDir != "" {
		loggerConfig.OutputToFile = true
		loggerConfig.LogDirectory = config.LogDir
	}

	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	perfTracker := performance.NewTracker(nil)

	db, err := database.Connect(logger)
	if err != nil {
		return nil, err
	}

	tableCreator := database.NewTableCreator()
	if err := tableCreator.CreateSchema(db.DB); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := tableCreator.SeedInitialContent(db.DB); err != nil {
		return nil, fmt.Errorf("failed to seed content: %w", err)
	}

	definitionCache := caching.NewDefinitionCache(config.DefinitionCacheTTL)
	broadcaster := messaging.NewEventBroadcaster(logger)

	// Optional integrations: absence of configuration disables them.
	emailService, err := email.NewService()
	if err != nil {
		logger.System().Info("Lead notification email disabled", "reason", err.Error())
		emailService = nil
	}
	capiService, err := capi.NewService()
	if err != nil {
		logger.System().Info("Meta Conversions API disabled", "reason", err.Error())
		capiService = nil
	}

	funnelRepo := content.NewSQLFunnelRepository(db)
	sessionRepo := tracking.NewSQLSessionRepository(db)
	stepViewRepo := tracking.NewSQLStepViewRepository(db)
	responseRepo := tracking.NewSQLResponseRepository(db)
	exportRepo := analytics.NewSQLExportRepository(db, logger)

	funnelService := services.NewFunnelService(funnelRepo, definitionCache, logger, perfTracker)

	return &Container{
		FunnelService: funnelService,
		EventProcessingService: services.NewEventProcessingService(
			funnelService, funnelRepo, sessionRepo, stepViewRepo, responseRepo,
			capiService, emailService, broadcaster, logger, perfTracker,
		),
		ExportService: services.NewExportService(exportRepo, funnelRepo, logger, perfTracker),
		AuthService:   services.NewAuthService(logger),
		DBService:     services.NewDBService(db, logger, perfTracker),

		Logger:          logger,
		PerfTracker:     perfTracker,
		DB:              db,
		DefinitionCache: definitionCache,
		Broadcaster:     broadcaster,
		EmailService:    emailService,
		CAPIService:     capiService,
	}, nil
}

// Close releases infrastructure resources.
func (c *Container) Close() error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return err
		}
	}
	if c.Logger != nil {
		return c.Logger.Close()
	}
	return nil
}
