package services

import (
	"fmt"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
)

// DBService handles database connectivity and health checking.
type DBService struct {
	db          *database.DB
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDBService creates a new database service.
func NewDBService(db *database.DB, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DBService {
	return &DBService{
		db:          db,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// CheckStatus performs a basic database health check.
func (d *DBService) CheckStatus() map[string]any {
	result := map[string]any{
		"status":    "checking",
		"timestamp": time.Now().UTC(),
	}

	if d.db == nil {
		result["status"] = "error"
		result["error"] = "no database connection"
		return result
	}

	var testResult int
	if err := d.db.QueryRow("SELECT 1").Scan(&testResult); err != nil {
		result["status"] = "error"
		result["error"] = fmt.Sprintf("connection test failed: %v", err)
		return result
	}

	requiredTables := []string{"funnels", "funnel_steps", "sessions", "responses", "step_views"}

	tableStatus := make(map[string]bool)
	allTablesExist := true
	for _, table := range requiredTables {
		exists := d.tableExists(table)
		tableStatus[table] = exists
		if !exists {
			allTablesExist = false
		}
	}

	result["status"] = "healthy"
	result["allTablesExist"] = allTablesExist
	result["tableStatus"] = tableStatus

	if !allTablesExist {
		result["status"] = "degraded"
		result["warning"] = "some tables missing"
	}

	return result
}

// GetConnectionStats returns database connection pool statistics.
func (d *DBService) GetConnectionStats() map[string]any {
	stats := d.db.Stats()
	return map[string]any{
		"openConns": stats.OpenConnections,
		"inUse":     stats.InUse,
		"idle":      stats.Idle,
	}
}

func (d *DBService) tableExists(tableName string) bool {
	const query = `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	var count int
	if err := d.db.QueryRow(query, tableName).Scan(&count); err != nil {
		return false
	}
	return count > 0
}
