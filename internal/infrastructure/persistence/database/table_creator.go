package database

import (
	"database/sql"
	"fmt"

	"github.com/AuroraHealth/aurora-go/internal/infrastructure/security"
)

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS funnels (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		version TEXT,
		price_variant TEXT,
		theme TEXT,
		tracking TEXT,
		meta TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS funnel_steps (
		id TEXT PRIMARY KEY,
		funnel_id TEXT NOT NULL REFERENCES funnels(id),
		sort_order INTEGER NOT NULL,
		step_id TEXT NOT NULL,
		type TEXT NOT NULL,
		config TEXT,
		show_if TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(funnel_id, step_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		funnel_id TEXT NOT NULL REFERENCES funnels(id),
		session_token TEXT NOT NULL UNIQUE,
		email TEXT,
		ip TEXT,
		user_agent TEXT,
		utm_params TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		funnel_step_id TEXT REFERENCES funnel_steps(id),
		step_id TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(session_id, step_id)
	)`,
	`CREATE TABLE IF NOT EXISTS step_views (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		step_id TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		step_type TEXT NOT NULL,
		viewed_at TEXT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_funnel_steps_funnel ON funnel_steps(funnel_id, sort_order)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_funnel ON sessions(funnel_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_session ON responses(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_step ON responses(step_id)`,
	`CREATE INDEX IF NOT EXISTS idx_step_views_session ON step_views(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_step_views_step ON step_views(step_id)`,
}

// CreateSchema executes all necessary queries to build the database tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

type seedStep struct {
	stepID string
	kind   string
	config string
	showIf string
}

// SeedInitialContent idempotently creates the default "discover-aurora" funnel.
func (tc *TableCreator) SeedInitialContent(db *sql.DB) error {
	var funnelID string
	err := db.QueryRow("SELECT id FROM funnels WHERE slug = 'discover-aurora'").Scan(&funnelID)
	if err == sql.ErrNoRows {
		funnelID = security.GenerateULID()
		_, err = db.Exec(
			`INSERT INTO funnels (id, slug, name, version, price_variant, theme) VALUES (?, ?, ?, ?, ?, ?)`,
			funnelID, "discover-aurora", "Discover Aurora", "1.0", "399",
			`{"primary":"#7c3aed","background":"#faf8ff","textPrimary":"#1f1235","textSecondary":"#6b6480"}`,
		)
		if err != nil {
			return fmt.Errorf("failed to insert default funnel: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check for default funnel: %w", err)
	}

	var stepCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM funnel_steps WHERE funnel_id = ?", funnelID).Scan(&stepCount); err != nil {
		return fmt.Errorf("failed to check for funnel steps: %w", err)
	}
	if stepCount > 0 {
		return nil
	}

	steps := []seedStep{
		{
			stepID: "welcome",
			kind:   "welcome",
			config: `{"title":"Know Your Baby Is Safe","subtitle":"Continuous reassurance between appointments","buttonText":"Get Started"}`,
		},
		{
			stepID: "pregnancy-status",
			kind:   "multiple-choice",
			config: `{"title":"Where are you in your journey?","options":[{"id":"pregnant","label":"I'm pregnant"},{"id":"trying","label":"We're trying"},{"id":"planning","label":"Planning ahead"},{"id":"supporting","label":"Supporting a loved one"}]}`,
		},
		{
			stepID: "trimester",
			kind:   "multiple-choice",
			config: `{"title":"Which trimester are you in?","options":[{"id":"first","label":"First (1-13 weeks)"},{"id":"second","label":"Second (14-27 weeks)"},{"id":"third","label":"Third (28+ weeks)"}]}`,
			showIf: `{"stepId":"pregnancy-status","operator":"equals","value":"pregnant"}`,
		},
		{
			stepID: "first-pregnancy",
			kind:   "multiple-choice",
			config: `{"title":"Is this your first pregnancy?","options":[{"id":"yes","label":"Yes"},{"id":"no","label":"No"}]}`,
			showIf: `{"stepId":"pregnancy-status","operator":"not_equals","value":"supporting"}`,
		},
		{
			stepID: "planning-monitoring",
			kind:   "multiple-choice",
			config: `{"title":"Would at-home monitoring help you feel prepared?","options":[{"id":"definitely","label":"Definitely"},{"id":"maybe","label":"Maybe"},{"id":"not-sure","label":"Not sure yet"}]}`,
			showIf: `{"stepId":"pregnancy-status","operator":"in","value":["trying","planning"]}`,
		},
		{
			stepID: "biggest-worry",
			kind:   "checkboxes",
			config: `{"title":"What worries you most between appointments?","options":[{"id":"heartbeat","label":"Not hearing the heartbeat"},{"id":"movement","label":"Changes in movement"},{"id":"complications","label":"Silent complications"},{"id":"waiting","label":"Waiting for the next visit"}]}`,
		},
		{
			stepID: "weekly-updates",
			kind:   "info-card",
			config: `{"title":"Clinical-grade monitoring at home","body":"Aurora tracks fetal heart rate and movement and alerts your care team to anything unusual.","buttonText":"Sounds Great"}`,
		},
		{
			stepID: "email-capture",
			kind:   "email",
			config: `{"title":"You're Almost There!","description":"Join the waitlist and be first to know when Aurora ships.","buttonText":"Join the Waitlist","required":true,"privacyNote":"We never share your email."}`,
		},
		{
			stepID: "result",
			kind:   "result",
			config: `{"title":"You're on the list!","body":"We'll reach out as soon as Aurora is available in your area."}`,
		},
	}

	for i, step := range steps {
		var showIf any
		if step.showIf != "" {
			showIf = step.showIf
		}
		_, err := db.Exec(
			`INSERT INTO funnel_steps (id, funnel_id, sort_order, step_id, type, config, show_if) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			security.GenerateULID(), funnelID, i, step.stepID, step.kind, step.config, showIf,
		)
		if err != nil {
			return fmt.Errorf("failed to insert funnel step %s: %w", step.stepID, err)
		}
	}

	return nil
}
