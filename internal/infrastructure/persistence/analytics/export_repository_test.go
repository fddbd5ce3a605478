package analytics

import (
	"log/slog"
	"testing"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/admin"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*SQLExportRepository, *database.DB, string) {
	t.Helper()

	db, err := database.NewConnection("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	tc := database.NewTableCreator()
	require.NoError(t, tc.CreateSchema(db.DB))
	require.NoError(t, tc.SeedInitialContent(db.DB))

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: true,
		JSONFormat:      true,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   map[logging.Channel]slog.Level{},
	})
	require.NoError(t, err)

	var funnelID string
	require.NoError(t, db.QueryRow("SELECT id FROM funnels WHERE slug = 'discover-aurora'").Scan(&funnelID))

	return NewSQLExportRepository(db, logger), db, funnelID
}

func insertSession(t *testing.T, db *database.DB, funnelID, token, email string, completed bool) string {
	t.Helper()
	id := security.GenerateULID()
	var completedAt any
	if completed {
		completedAt = time.Now().UTC().Format(time.RFC3339)
	}
	var emailValue any
	if email != "" {
		emailValue = email
	}
	_, err := db.Exec(
		`INSERT INTO sessions (id, funnel_id, session_token, email, started_at, completed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, funnelID, token, emailValue, time.Now().UTC().Format(time.RFC3339), completedAt,
	)
	require.NoError(t, err)
	return id
}

func insertStepView(t *testing.T, db *database.DB, sessionID, stepID string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO step_views (id, session_id, step_id, step_index, step_type, viewed_at) VALUES (?, ?, ?, 0, 'welcome', ?)`,
		security.GenerateULID(), sessionID, stepID, time.Now().UTC().Format(time.RFC3339),
	)
	require.NoError(t, err)
}

func insertResponse(t *testing.T, db *database.DB, sessionID, stepID, value string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO responses (id, session_id, step_id, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		security.GenerateULID(), sessionID, stepID, value, time.Now().UTC().Format(time.RFC3339),
	)
	require.NoError(t, err)
}

func TestOverviewCountsAndRate(t *testing.T) {
	repo, db, funnelID := newTestRepository(t)

	insertSession(t, db, funnelID, "tok-1", "a@example.com", true)
	insertSession(t, db, funnelID, "tok-2", "b@example.com", false)
	insertSession(t, db, funnelID, "tok-3", "", false)
	insertSession(t, db, funnelID, "tok-4", "a@example.com", true)

	overview, err := repo.Overview(funnelID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, overview.TotalSessions)
	assert.Equal(t, 2, overview.CompletedSessions)
	assert.InDelta(t, 0.5, overview.CompletionRate, 0.001)
	assert.Equal(t, 2, overview.UniqueEmails)
}

func TestStepDropOffCountsDistinctSessions(t *testing.T) {
	repo, db, funnelID := newTestRepository(t)

	s1 := insertSession(t, db, funnelID, "tok-1", "", false)
	s2 := insertSession(t, db, funnelID, "tok-2", "", false)

	// s1 re-views welcome after going back; drop-off must still count it once.
	insertStepView(t, db, s1, "welcome")
	insertStepView(t, db, s1, "welcome")
	insertStepView(t, db, s2, "welcome")
	insertStepView(t, db, s1, "pregnancy-status")

	insertResponse(t, db, s1, "pregnancy-status", `"pregnant"`)

	dropOff, err := repo.StepDropOff(funnelID, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, dropOff)

	byStep := make(map[string]admin.StepDropOff, len(dropOff))
	for _, row := range dropOff {
		byStep[row.StepID] = row
	}

	assert.Equal(t, 2, byStep["welcome"].Views)
	assert.Equal(t, 0, byStep["welcome"].Answers)
	assert.Equal(t, 1, byStep["pregnancy-status"].Views)
	assert.Equal(t, 1, byStep["pregnancy-status"].Answers)

	// Rows come back in authored order.
	assert.Equal(t, "welcome", dropOff[0].StepID)
	assert.Equal(t, 0, dropOff[0].SortOrder)
}

func TestAnswerDistributions(t *testing.T) {
	repo, db, funnelID := newTestRepository(t)

	s1 := insertSession(t, db, funnelID, "tok-1", "", false)
	s2 := insertSession(t, db, funnelID, "tok-2", "", false)
	s3 := insertSession(t, db, funnelID, "tok-3", "", false)

	insertResponse(t, db, s1, "pregnancy-status", `"pregnant"`)
	insertResponse(t, db, s2, "pregnancy-status", `"pregnant"`)
	insertResponse(t, db, s3, "pregnancy-status", `"trying"`)

	distributions, err := repo.AnswerDistributions(funnelID, nil, nil)
	require.NoError(t, err)
	require.Len(t, distributions, 2)

	assert.Equal(t, `"pregnant"`, distributions[0].Value)
	assert.Equal(t, 2, distributions[0].Count)
	assert.Equal(t, `"trying"`, distributions[1].Value)
	assert.Equal(t, 1, distributions[1].Count)
}

func TestSessionsFilterByStatusAndEmail(t *testing.T) {
	repo, db, funnelID := newTestRepository(t)

	insertSession(t, db, funnelID, "tok-1", "a@example.com", true)
	insertSession(t, db, funnelID, "tok-2", "", false)
	insertSession(t, db, funnelID, "tok-3", "c@example.com", false)

	completed, err := repo.Sessions(admin.SessionFilter{Status: "completed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "tok-1", completed[0].SessionToken)

	withEmail, err := repo.Sessions(admin.SessionFilter{EmailOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, withEmail, 2)

	paged, err := repo.Sessions(admin.SessionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 2)
}
