// Package repositories defines the repository interfaces the application
// services depend on. The concrete SQL implementations live under
// internal/infrastructure/persistence; keeping the interfaces here keeps
// the services decoupled from the database.
package repositories

import (
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/entities/admin"
	"github.com/AuroraHealth/aurora-go/internal/domain/entities/tracking"
	"github.com/AuroraHealth/aurora-go/internal/domain/funnel"
)

// FunnelRepository serves immutable funnel definitions.
type FunnelRepository interface {
	// FindBySlug returns the full definition, or (nil, nil) when unknown.
	FindBySlug(slug string) (*funnel.Definition, error)
	// ResolveIDBySlug returns the funnel row id, or "" when unknown.
	ResolveIDBySlug(slug string) (string, error)
	// StepIDMap maps authored step ids to funnel_steps row ids.
	StepIDMap(funnelID string) (map[string]string, error)
}

// SessionRepository persists sessions keyed by the client session token.
type SessionRepository interface {
	FindByToken(token string) (*tracking.Session, error)
	// InsertIgnore creates the session unless the token already exists.
	// Returns true iff this call created the row; a concurrent duplicate
	// loses the race at the unique index and gets (false, nil).
	InsertIgnore(session *tracking.Session) (bool, error)
	UpdateEmail(sessionID, email string) error
	// MarkCompleted sets completed_at once; it is never cleared.
	MarkCompleted(sessionID string, completedAt time.Time) error
	// BackfillUTM sets utm_params only when the session has none yet.
	BackfillUTM(sessionID, utmJSON string) error
}

// StepViewRepository appends step view facts.
type StepViewRepository interface {
	Insert(view *tracking.StepView) error
}

// ResponseRepository upserts answers keyed on (sessionID, stepID).
type ResponseRepository interface {
	// Upsert inserts the response or, when the key exists, overwrites
	// value and created_at. Last write wins.
	Upsert(response *tracking.Response) error
	FindBySessionAndStep(sessionID, stepID string) (*tracking.Response, error)
}

// ExportRepository runs the aggregate queries behind the data API.
type ExportRepository interface {
	Sessions(filter admin.SessionFilter) ([]*admin.SessionSummary, error)
	Responses(filter admin.SessionFilter) ([]*admin.ResponseExportRow, error)
	Overview(funnelID string, from, to *time.Time) (*admin.Overview, error)
	StepDropOff(funnelID string, from, to *time.Time) ([]admin.StepDropOff, error)
	AnswerDistributions(funnelID string, from, to *time.Time) ([]admin.AnswerDistribution, error)
}
