// Package admin defines the data-export result shapes served by the
// protected data API.
package admin

import "time"

// SessionFilter narrows the sessions export.
type SessionFilter struct {
	FunnelID  string     // funnel row id, resolved from the slug
	Status    string     // "", "completed", or "incomplete"
	From      *time.Time // inclusive lower bound on started_at
	To        *time.Time // inclusive upper bound on started_at
	Limit     int
	Offset    int
	EmailOnly bool // restrict to sessions that captured an email
}

// SessionSummary is one row of the sessions export.
type SessionSummary struct {
	ID            string     `json:"id"`
	FunnelSlug    string     `json:"funnel_slug"`
	SessionToken  string     `json:"session_token"`
	Email         *string    `json:"email,omitempty"`
	UTMParams     *string    `json:"utm_params,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ResponseCount int        `json:"response_count"`
}

// ResponseExportRow is one row of the responses export.
type ResponseExportRow struct {
	SessionID    string    `json:"session_id"`
	SessionToken string    `json:"session_token"`
	FunnelSlug   string    `json:"funnel_slug"`
	StepID       string    `json:"step_id"`
	Value        string    `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

// Overview is the headline block of the stats export.
type Overview struct {
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	CompletionRate    float64 `json:"completion_rate"`
	UniqueEmails      int     `json:"unique_emails"`
}

// StepDropOff reports distinct-session reach per step, in authored order.
type StepDropOff struct {
	StepID    string `json:"step_id"`
	StepType  string `json:"step_type"`
	SortOrder int    `json:"sort_order"`
	Views     int    `json:"views"`   // distinct sessions that viewed the step
	Answers   int    `json:"answers"` // distinct sessions that answered it
}

// AnswerDistribution counts how often each value was given for a step.
type AnswerDistribution struct {
	StepID string `json:"step_id"`
	Value  string `json:"value"`
	Count  int    `json:"count"`
}

// FunnelStats is the full stats export payload for one funnel.
type FunnelStats struct {
	FunnelSlug          string               `json:"funnel_slug"`
	Overview            Overview             `json:"overview"`
	StepDropOff         []StepDropOff        `json:"step_drop_off"`
	AnswerDistributions []AnswerDistribution `json:"answer_distributions"`
}
