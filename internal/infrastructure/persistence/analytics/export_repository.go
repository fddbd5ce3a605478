// Package analytics provides the SQL implementation of the data-export
// repository behind the protected data API.
package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/admin"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
)

// SQLExportRepository is the SQL-based implementation of the ExportRepository.
type SQLExportRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLExportRepository creates a new instance of the repository.
func NewSQLExportRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLExportRepository {
	return &SQLExportRepository{db: db, logger: logger}
}

// Sessions lists sessions matching the filter, newest first.
func (r *SQLExportRepository) Sessions(filter admin.SessionFilter) ([]*admin.SessionSummary, error) {
	start := time.Now()

	query := `
		SELECT s.id, f.slug, s.session_token, s.email, s.utm_params, s.started_at, s.completed_at,
			(SELECT COUNT(*) FROM responses r WHERE r.session_id = s.id) AS response_count
		FROM sessions s
		JOIN funnels f ON f.id = s.funnel_id`

	where, args := sessionConditions("s", filter)
	query += where + `
		ORDER BY s.started_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Sessions export query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var sessions []*admin.SessionSummary
	for rows.Next() {
		var (
			s              admin.SessionSummary
			email          sql.NullString
			utmParams      sql.NullString
			startedAtStr   string
			completedAtStr sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.FunnelSlug, &s.SessionToken, &email, &utmParams,
			&startedAtStr, &completedAtStr, &s.ResponseCount); err != nil {
			return nil, err
		}
		if email.Valid {
			s.Email = &email.String
		}
		if utmParams.Valid && utmParams.String != "" {
			s.UTMParams = &utmParams.String
		}
		if s.StartedAt, err = parseTimestamp(startedAtStr); err != nil {
			return nil, err
		}
		if completedAtStr.Valid && completedAtStr.String != "" {
			completedAt, err := parseTimestamp(completedAtStr.String)
			if err != nil {
				return nil, err
			}
			s.CompletedAt = &completedAt
		}
		sessions = append(sessions, &s)
	}

	database.CheckAndLogSlowQuery(r.logger, "EXPORT_SESSIONS", time.Since(start))
	return sessions, rows.Err()
}

// Responses lists response rows matching the filter, newest first.
func (r *SQLExportRepository) Responses(filter admin.SessionFilter) ([]*admin.ResponseExportRow, error) {
	start := time.Now()

	query := `
		SELECT r.session_id, s.session_token, f.slug, r.step_id, r.value, r.created_at
		FROM responses r
		JOIN sessions s ON s.id = r.session_id
		JOIN funnels f ON f.id = s.funnel_id`

	where, args := sessionConditions("s", filter)
	query += where + `
		ORDER BY r.created_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Responses export query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var responses []*admin.ResponseExportRow
	for rows.Next() {
		var (
			row          admin.ResponseExportRow
			createdAtStr string
		)
		if err := rows.Scan(&row.SessionID, &row.SessionToken, &row.FunnelSlug,
			&row.StepID, &row.Value, &createdAtStr); err != nil {
			return nil, err
		}
		if row.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
			return nil, err
		}
		responses = append(responses, &row)
	}

	database.CheckAndLogSlowQuery(r.logger, "EXPORT_RESPONSES", time.Since(start))
	return responses, rows.Err()
}

// Overview computes headline stats for one funnel.
func (r *SQLExportRepository) Overview(funnelID string, from, to *time.Time) (*admin.Overview, error) {
	start := time.Now()

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN completed_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT email)
		FROM sessions
		WHERE funnel_id = ?`
	args := []any{funnelID}
	query, args = appendDateRange(query, args, "started_at", from, to)

	var overview admin.Overview
	err := r.db.QueryRow(query, args...).Scan(
		&overview.TotalSessions,
		&overview.CompletedSessions,
		&overview.UniqueEmails,
	)
	if err != nil {
		return nil, err
	}

	if overview.TotalSessions > 0 {
		overview.CompletionRate = float64(overview.CompletedSessions) / float64(overview.TotalSessions)
	}

	database.CheckAndLogSlowQuery(r.logger, "EXPORT_OVERVIEW", time.Since(start))
	return &overview, nil
}

// StepDropOff reports distinct-session views and answers per step, in
// authored order. Drop-off analytics count distinct sessions, not raw view
// rows, so re-viewed steps do not inflate reach.
func (r *SQLExportRepository) StepDropOff(funnelID string, from, to *time.Time) ([]admin.StepDropOff, error) {
	start := time.Now()

	viewsFilter, viewsArgs := dateRangeClause("sv_s.started_at", from, to)
	answersFilter, answersArgs := dateRangeClause("r_s.started_at", from, to)

	query := fmt.Sprintf(`
		SELECT fs.step_id, fs.type, fs.sort_order,
			(SELECT COUNT(DISTINCT sv.session_id)
				FROM step_views sv
				JOIN sessions sv_s ON sv_s.id = sv.session_id
				WHERE sv.step_id = fs.step_id AND sv_s.funnel_id = fs.funnel_id%s) AS views,
			(SELECT COUNT(DISTINCT r.session_id)
				FROM responses r
				JOIN sessions r_s ON r_s.id = r.session_id
				WHERE r.step_id = fs.step_id AND r_s.funnel_id = fs.funnel_id%s) AS answers
		FROM funnel_steps fs
		WHERE fs.funnel_id = ?
		ORDER BY fs.sort_order ASC`, viewsFilter, answersFilter)

	args := append(append(viewsArgs, answersArgs...), funnelID)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Step drop-off query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var result []admin.StepDropOff
	for rows.Next() {
		var row admin.StepDropOff
		if err := rows.Scan(&row.StepID, &row.StepType, &row.SortOrder, &row.Views, &row.Answers); err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	database.CheckAndLogSlowQuery(r.logger, "EXPORT_STEP_DROP_OFF", time.Since(start))
	return result, rows.Err()
}

// AnswerDistributions counts answers grouped by step and value.
func (r *SQLExportRepository) AnswerDistributions(funnelID string, from, to *time.Time) ([]admin.AnswerDistribution, error) {
	start := time.Now()

	query := `
		SELECT r.step_id, r.value, COUNT(*) AS count
		FROM responses r
		JOIN sessions s ON s.id = r.session_id
		WHERE s.funnel_id = ?`
	args := []any{funnelID}
	query, args = appendDateRange(query, args, "s.started_at", from, to)
	query += `
		GROUP BY r.step_id, r.value
		ORDER BY r.step_id ASC, count DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Answer distribution query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var result []admin.AnswerDistribution
	for rows.Next() {
		var row admin.AnswerDistribution
		if err := rows.Scan(&row.StepID, &row.Value, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	database.CheckAndLogSlowQuery(r.logger, "EXPORT_ANSWER_DISTRIBUTIONS", time.Since(start))
	return result, rows.Err()
}

// sessionConditions builds the shared WHERE clause for session-scoped exports.
func sessionConditions(alias string, filter admin.SessionFilter) (string, []any) {
	where := "\n\t\tWHERE 1=1"
	var args []any

	if filter.FunnelID != "" {
		where += fmt.Sprintf(" AND %s.funnel_id = ?", alias)
		args = append(args, filter.FunnelID)
	}
	switch filter.Status {
	case "completed":
		where += fmt.Sprintf(" AND %s.completed_at IS NOT NULL", alias)
	case "incomplete":
		where += fmt.Sprintf(" AND %s.completed_at IS NULL", alias)
	}
	if filter.EmailOnly {
		where += fmt.Sprintf(" AND %s.email IS NOT NULL", alias)
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND %s.started_at >= ?", alias)
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND %s.started_at <= ?", alias)
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	return where, args
}

func appendDateRange(query string, args []any, column string, from, to *time.Time) (string, []any) {
	clause, clauseArgs := dateRangeClause(column, from, to)
	return query + clause, append(args, clauseArgs...)
}

func dateRangeClause(column string, from, to *time.Time) (string, []any) {
	var clause string
	var args []any
	if from != nil {
		clause += fmt.Sprintf(" AND %s >= ?", column)
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		clause += fmt.Sprintf(" AND %s <= ?", column)
		args = append(args, to.UTC().Format(time.RFC3339))
	}
	return clause, args
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
