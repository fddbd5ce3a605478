// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/application/container"
	"github.com/AuroraHealth/aurora-go/internal/presentation/http/server"
	"github.com/AuroraHealth/aurora-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until shutdown.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
   __ _ _   _ _ __ ___  _ __ __ _
  / _` + "`" + ` | | | | '__/ _ \| '__/ _` + "`" + ` |
 | (_| | |_| | | | (_) | | | (_| |
  \__,_|\__,_|_|  \___/|_|  \__,_|
` + "\033[97m" + `
  funnel engine
` + "\033[0m")

	// Step 1: Create dependency injection container (logger, database,
	// schema, services)
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("container initialization failed: %w", err)
	}

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 2: Start the live feed broadcaster
	logger.Startup().Info("Starting live feed broadcaster...")
	go appContainer.Broadcaster.Run()

	// Step 3: Start background maintenance (cache cleanup, perf marker pruning)
	logger.Startup().Info("Starting background maintenance worker...")
	go runMaintenance(ctx, appContainer)

	// Step 4: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	httpServer := server.New(config.Port, appContainer)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+config.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port)

	// Step 5: Wait for shutdown signal
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing container...")
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing container", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// runMaintenance periodically prunes the definition cache and old
// performance markers until the context is cancelled.
func runMaintenance(ctx context.Context, c *container.Container) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := c.DefinitionCache.Cleanup()
			c.PerfTracker.Cleanup()
			if removed > 0 {
				c.Logger.System().Debug("Definition cache cleanup", "removed", removed)
			}
		}
	}
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
