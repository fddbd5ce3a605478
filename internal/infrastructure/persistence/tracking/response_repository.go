package tracking

import (
	"database/sql"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/tracking"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
)

// SQLResponseRepository is the SQL-based implementation of the ResponseRepository.
type SQLResponseRepository struct {
	db *database.DB
}

// NewSQLResponseRepository creates a new instance of the repository.
func NewSQLResponseRepository(db *database.DB) *SQLResponseRepository {
	return &SQLResponseRepository{db: db}
}

// Upsert writes a response keyed on (session_id, step_id). Re-answering a
// question replaces the prior value and bumps created_at: last write wins.
func (r *SQLResponseRepository) Upsert(response *tracking.Response) error {
	const query = `
		INSERT INTO responses (id, session_id, funnel_step_id, step_id, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, step_id) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at`

	_, err := r.db.Exec(
		query,
		response.ID,
		response.SessionID,
		response.FunnelStepID,
		response.StepID,
		response.Value,
		response.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// FindBySessionAndStep retrieves one response by its composite key.
func (r *SQLResponseRepository) FindBySessionAndStep(sessionID, stepID string) (*tracking.Response, error) {
	const query = `
		SELECT id, session_id, funnel_step_id, step_id, value, created_at
		FROM responses
		WHERE session_id = ? AND step_id = ?`

	var (
		response     tracking.Response
		funnelStepID sql.NullString
		createdAtStr string
	)

	err := r.db.QueryRow(query, sessionID, stepID).Scan(
		&response.ID,
		&response.SessionID,
		&funnelStepID,
		&response.StepID,
		&response.Value,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if funnelStepID.Valid {
		response.FunnelStepID = &funnelStepID.String
	}

	response.CreatedAt, err = parseTimestamp(createdAtStr)
	if err != nil {
		return nil, err
	}

	return &response, nil
}
