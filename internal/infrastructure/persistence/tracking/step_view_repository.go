package tracking

import (
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/tracking"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
)

// SQLStepViewRepository is the SQL-based implementation of the StepViewRepository.
type SQLStepViewRepository struct {
	db *database.DB
}

// NewSQLStepViewRepository creates a new instance of the repository.
func NewSQLStepViewRepository(db *database.DB) *SQLStepViewRepository {
	return &SQLStepViewRepository{db: db}
}

// Insert appends a step view fact. Views are never deduplicated here;
// re-viewing a step after going back legitimately adds another row.
func (r *SQLStepViewRepository) Insert(view *tracking.StepView) error {
	const query = `
		INSERT INTO step_views (id, session_id, step_id, step_index, step_type, viewed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(
		query,
		view.ID,
		view.SessionID,
		view.StepID,
		view.StepIndex,
		view.StepType,
		view.ViewedAt.UTC().Format(time.RFC3339),
	)
	return err
}
