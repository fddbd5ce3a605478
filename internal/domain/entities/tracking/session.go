// Package tracking defines the server-side persisted entities produced by
// funnel event ingestion: sessions, step views, and responses.
package tracking

import "time"

// Session is one funnel run as seen by the server, keyed by the
// client-generated session token. Created at most once per token.
type Session struct {
	ID           string     `json:"id"`
	FunnelID     string     `json:"funnelId"`
	SessionToken string     `json:"sessionToken"`
	Email        *string    `json:"email,omitempty"`
	IP           *string    `json:"ip,omitempty"`
	UserAgent    *string    `json:"userAgent,omitempty"`
	UTMParams    *string    `json:"utmParams,omitempty"` // JSON text
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// IsCompleted reports whether the session reached the funnel's end.
func (s *Session) IsCompleted() bool {
	return s.CompletedAt != nil
}

// StepView is an append-only fact: one row per view event received. A step
// re-viewed after going back produces another row; drop-off analytics count
// distinct sessions per step, not rows.
type StepView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	StepID    string    `json:"stepId"`
	StepIndex int       `json:"stepIndex"`
	StepType  string    `json:"stepType"`
	ViewedAt  time.Time `json:"viewedAt"`
}

// Response is one answer, uniquely keyed on (SessionID, StepID) with
// last-write-wins upsert semantics. Value holds the answer as JSON text.
type Response struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	FunnelStepID *string   `json:"funnelStepId,omitempty"`
	StepID       string    `json:"stepId"`
	Value        string    `json:"value"`
	CreatedAt    time.Time `json:"createdAt"`
}
