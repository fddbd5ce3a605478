// Package tracking provides the concrete SQL-based implementations of
// the tracking domain repositories (Session, StepView, Response).
package tracking

import (
	"database/sql"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/tracking"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
)

// SQLSessionRepository is the SQL-based implementation of the SessionRepository.
type SQLSessionRepository struct {
	db *database.DB
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db *database.DB) *SQLSessionRepository {
	return &SQLSessionRepository{db: db}
}

// FindByToken retrieves a Session by its client-generated token.
func (r *SQLSessionRepository) FindByToken(token string) (*tracking.Session, error) {
	const query = `
		SELECT id, funnel_id, session_token, email, ip, user_agent, utm_params, started_at, completed_at
		FROM sessions
		WHERE session_token = ?`

	row := r.db.QueryRow(query, token)
	return r.scanSession(row)
}

// InsertIgnore creates the session unless its token already exists. Two
// concurrent inserts for the same token race safely at the unique index:
// the loser becomes a no-op and returns created=false.
func (r *SQLSessionRepository) InsertIgnore(session *tracking.Session) (bool, error) {
	const query = `
		INSERT INTO sessions (id, funnel_id, session_token, email, ip, user_agent, utm_params, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_token) DO NOTHING`

	result, err := r.db.Exec(
		query,
		session.ID,
		session.FunnelID,
		session.SessionToken,
		session.Email,
		session.IP,
		session.UserAgent,
		session.UTMParams,
		session.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateEmail sets the session's captured email.
func (r *SQLSessionRepository) UpdateEmail(sessionID, email string) error {
	const query = `UPDATE sessions SET email = ? WHERE id = ?`

	_, err := r.db.Exec(query, email, sessionID)
	return err
}

// MarkCompleted sets completed_at once; a session never becomes incomplete again.
func (r *SQLSessionRepository) MarkCompleted(sessionID string, completedAt time.Time) error {
	const query = `
		UPDATE sessions
		SET completed_at = ?
		WHERE id = ? AND completed_at IS NULL`

	_, err := r.db.Exec(query, completedAt.UTC().Format(time.RFC3339), sessionID)
	return err
}

// BackfillUTM records UTM parameters only when the session has none yet.
// Handles funnel_start racing ahead without UTM data available.
func (r *SQLSessionRepository) BackfillUTM(sessionID, utmJSON string) error {
	const query = `
		UPDATE sessions
		SET utm_params = ?
		WHERE id = ? AND (utm_params IS NULL OR utm_params = '')`

	_, err := r.db.Exec(query, utmJSON, sessionID)
	return err
}

// scanSession is a helper function to scan a sql.Row into a Session struct.
func (r *SQLSessionRepository) scanSession(row *sql.Row) (*tracking.Session, error) {
	var (
		session        tracking.Session
		email          sql.NullString
		ip             sql.NullString
		userAgent      sql.NullString
		utmParams      sql.NullString
		startedAtStr   string
		completedAtStr sql.NullString
	)

	err := row.Scan(
		&session.ID,
		&session.FunnelID,
		&session.SessionToken,
		&email,
		&ip,
		&userAgent,
		&utmParams,
		&startedAtStr,
		&completedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if email.Valid {
		session.Email = &email.String
	}
	if ip.Valid {
		session.IP = &ip.String
	}
	if userAgent.Valid {
		session.UserAgent = &userAgent.String
	}
	if utmParams.Valid && utmParams.String != "" {
		session.UTMParams = &utmParams.String
	}

	session.StartedAt, err = parseTimestamp(startedAtStr)
	if err != nil {
		return nil, err
	}

	if completedAtStr.Valid && completedAtStr.String != "" {
		completedAt, err := parseTimestamp(completedAtStr.String)
		if err != nil {
			return nil, err
		}
		session.CompletedAt = &completedAt
	}

	return &session, nil
}

// parseTimestamp parses RFC3339 with a fallback for sqlite's default format.
func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04:05", value)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t, nil
}
