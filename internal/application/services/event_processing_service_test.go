package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/analytics"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/caching"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/content"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
	persistTracking "github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSlug  = "discover-aurora"
	testToken = "01TESTINGESTIONTOKEN000000"
)

func newTestService(t *testing.T) (*EventProcessingService, *database.DB) {
	t.Helper()

	db, err := database.NewConnection("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// sqlite :memory: databases are per-connection.
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

	tracker := performance.NewTracker(nil)
	funnelRepo := content.NewSQLFunnelRepository(db)
	sessionRepo := persistTracking.NewSQLSessionRepository(db)
	stepViewRepo := persistTracking.NewSQLStepViewRepository(db)
	responseRepo := persistTracking.NewSQLResponseRepository(db)
	funnelService := NewFunnelService(funnelRepo, caching.NewDefinitionCache(time.Minute), logger, tracker)

	svc := NewEventProcessingService(
		funnelService, funnelRepo, sessionRepo, stepViewRepo, responseRepo,
		nil, nil, nil, logger, tracker,
	)
	return svc, db
}

func funnelStartEvent() *analytics.Event {
	return &analytics.Event{
		Type:         analytics.EventFunnelStart,
		FunnelID:     testSlug,
		SessionToken: testToken,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		UTMParams:    map[string]string{"utm_source": "meta", "utm_campaign": "launch"},
		FirstStep:    &analytics.StepView{StepID: "welcome", StepIndex: 0, StepType: "welcome"},
	}
}

func stepViewEvent(stepID string, index int) *analytics.Event {
	return &analytics.Event{
		Type:         analytics.EventStepView,
		FunnelID:     testSlug,
		SessionToken: testToken,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		StepID:       stepID,
		StepIndex:    &index,
		StepType:     "multiple-choice",
	}
}

func responseEvent(stepID string, value any) *analytics.Event {
	return &analytics.Event{
		Type:         analytics.EventResponse,
		FunnelID:     testSlug,
		SessionToken: testToken,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		StepID:       stepID,
		Value:        value,
	}
}

func countRows(t *testing.T, db *database.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestFunnelStartCreatesSessionAndFirstStepView(t *testing.T) {
	svc, db := newTestService(t)

	result, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{IP: "203.0.113.9", UserAgent: "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sessions WHERE session_token = ?", testToken))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM step_views WHERE step_id = 'welcome'"))

	var ip, utm string
	require.NoError(t, db.QueryRow("SELECT ip, utm_params FROM sessions WHERE session_token = ?", testToken).Scan(&ip, &utm))
	assert.Equal(t, "203.0.113.9", ip)
	assert.Contains(t, utm, "utm_source")
}

func TestFunnelStartReplayIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sessions WHERE session_token = ?", testToken))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM step_views WHERE step_id = 'welcome'"))
}

func TestFunnelStartUnknownSlug(t *testing.T) {
	svc, _ := newTestService(t)

	event := funnelStartEvent()
	event.FunnelID = "no-such-funnel"
	_, err := svc.ProcessEvent(event, RequestMeta{})
	assert.ErrorIs(t, err, ErrUnknownFunnel)
}

func TestStepViewBeforeFunnelStartLazilyCreatesSession(t *testing.T) {
	svc, db := newTestService(t)

	result, err := svc.ProcessEvent(stepViewEvent("pregnancy-status", 1), RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sessions WHERE session_token = ?", testToken))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM step_views WHERE step_id = 'pregnancy-status'"))

	// The late funnel_start must not create a second session, and its
	// embedded first step view must not be recorded against the
	// lazily-created row.
	_, err = svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sessions WHERE session_token = ?", testToken))
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM step_views WHERE step_id = 'welcome'"))
}

func TestStepViewWithoutFunnelIsDroppedSilently(t *testing.T) {
	svc, db := newTestService(t)

	event := stepViewEvent("pregnancy-status", 1)
	event.FunnelID = ""
	result, err := svc.ProcessEvent(event, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "dropped", result.Status)
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM step_views"))
}

func TestStepViewBackfillsUTMOnlyWhenEmpty(t *testing.T) {
	svc, db := newTestService(t)

	start := funnelStartEvent()
	start.UTMParams = nil
	_, err := svc.ProcessEvent(start, RequestMeta{})
	require.NoError(t, err)

	view := stepViewEvent("pregnancy-status", 1)
	view.UTMParams = map[string]string{"utm_source": "newsletter"}
	_, err = svc.ProcessEvent(view, RequestMeta{})
	require.NoError(t, err)

	var utm string
	require.NoError(t, db.QueryRow("SELECT utm_params FROM sessions WHERE session_token = ?", testToken).Scan(&utm))
	assert.Contains(t, utm, "newsletter")

	// A later event with different UTM must not overwrite the recorded set.
	view2 := stepViewEvent("trimester", 2)
	view2.UTMParams = map[string]string{"utm_source": "other"}
	_, err = svc.ProcessEvent(view2, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, db.QueryRow("SELECT utm_params FROM sessions WHERE session_token = ?", testToken).Scan(&utm))
	assert.Contains(t, utm, "newsletter")
}

func TestResponseBeforeSessionIsDropped(t *testing.T) {
	svc, db := newTestService(t)

	result, err := svc.ProcessEvent(responseEvent("pregnancy-status", "pregnant"), RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "dropped", result.Status)
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM sessions"))
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM responses"))
}

func TestResponseUpsertLastWriteWins(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
	require.NoError(t, err)

	_, err = svc.ProcessEvent(responseEvent("pregnancy-status", "pregnant"), RequestMeta{})
	require.NoError(t, err)
	_, err = svc.ProcessEvent(responseEvent("pregnancy-status", "trying"), RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM responses WHERE step_id = 'pregnancy-status'"))

	var value string
	require.NoError(t, db.QueryRow("SELECT value FROM responses WHERE step_id = 'pregnancy-status'").Scan(&value))
	assert.Equal(t, `"trying"`, value)
}

func TestResponseDenormalizesStepRowID(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
	require.NoError(t, err)
	_, err = svc.ProcessEvent(responseEvent("pregnancy-status", "pregnant"), RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, db, `
		SELECT COUNT(*) FROM responses r
		JOIN funnel_steps fs ON fs.id = r.funnel_step_id
		WHERE fs.step_id = 'pregnancy-status'`))
}

func TestCheckboxResponseStoredAsJSONArray(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
	require.NoError(t, err)
	_, err = svc.ProcessEvent(responseEvent("biggest-worry", []string{"heartbeat", "movement"}), RequestMeta{})
	require.NoError(t, err)

	var value string
	require.NoError(t, db.QueryRow("SELECT value FROM responses WHERE step_id = 'biggest-worry'").Scan(&value))
	assert.Equal(t, `["heartbeat","movement"]`, value)
}

func TestLeadUpdatesEmail(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
	require.NoError(t, err)

	lead := &analytics.Event{
		Type:         analytics.EventLead,
		FunnelID:     testSlug,
		SessionToken: testToken,
		Email:        "kai@example.com",
	}
	result, err := svc.ProcessEvent(lead, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)

	var email string
	require.NoError(t, db.QueryRow("SELECT email FROM sessions WHERE session_token = ?", testToken).Scan(&email))
	assert.Equal(t, "kai@example.com", email)
}

func TestCompleteSetsCompletedAtOnce(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ProcessEvent(funnelStartEvent(), RequestMeta{})
	require.NoError(t, err)

	complete := &analytics.Event{
		Type:         analytics.EventComplete,
		FunnelID:     testSlug,
		SessionToken: testToken,
		Email:        "kai@example.com",
	}
	_, err = svc.ProcessEvent(complete, RequestMeta{})
	require.NoError(t, err)

	var first string
	require.NoError(t, db.QueryRow("SELECT completed_at FROM sessions WHERE session_token = ?", testToken).Scan(&first))
	require.NotEmpty(t, first)

	time.Sleep(1100 * time.Millisecond)
	_, err = svc.ProcessEvent(complete, RequestMeta{})
	require.NoError(t, err)

	var second string
	require.NoError(t, db.QueryRow("SELECT completed_at FROM sessions WHERE session_token = ?", testToken).Scan(&second))
	assert.Equal(t, first, second)
}

func TestLeadForUnknownSessionIsDropped(t *testing.T) {
	svc, _ := newTestService(t)

	lead := &analytics.Event{
		Type:         analytics.EventLead,
		FunnelID:     testSlug,
		SessionToken: "01UNSEENTOKEN0000000000000",
		Email:        "kai@example.com",
	}
	result, err := svc.ProcessEvent(lead, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "dropped", result.Status)
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	svc, _ := newTestService(t)

	event := &analytics.Event{
		Type:         analytics.EventType("page_ping"),
		FunnelID:     testSlug,
		SessionToken: testToken,
	}
	result, err := svc.ProcessEvent(event, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ignored", result.Status)
}
