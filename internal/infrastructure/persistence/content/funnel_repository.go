// Package content provides the concrete SQL-based implementation of the
// funnel definition repository.
package content

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/AuroraHealth/aurora-go/internal/domain/funnel"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/persistence/database"
)

// SQLFunnelRepository is the SQL-based implementation of the FunnelRepository.
type SQLFunnelRepository struct {
	db *database.DB
}

// NewSQLFunnelRepository creates a new instance of the repository.
func NewSQLFunnelRepository(db *database.DB) *SQLFunnelRepository {
	return &SQLFunnelRepository{db: db}
}

// FindBySlug retrieves a full funnel definition by its public slug.
// The definition's ID is the slug: it is the identifier clients echo back
// as funnel_id on every analytics event.
func (r *SQLFunnelRepository) FindBySlug(slug string) (*funnel.Definition, error) {
	const query = `
		SELECT id, slug, name, version, price_variant, theme, tracking, meta
		FROM funnels
		WHERE slug = ?`

	var (
		rowID        string
		def          funnel.Definition
		version      sql.NullString
		priceVariant sql.NullString
		themeJSON    sql.NullString
		trackingJSON sql.NullString
		metaJSON     sql.NullString
	)

	err := r.db.QueryRow(query, slug).Scan(
		&rowID,
		&def.ID,
		&def.Name,
		&version,
		&priceVariant,
		&themeJSON,
		&trackingJSON,
		&metaJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	def.Version = version.String
	def.PriceVariant = priceVariant.String
	if def.Theme, err = decodeObject(themeJSON); err != nil {
		return nil, fmt.Errorf("failed to decode funnel theme: %w", err)
	}
	if def.Tracking, err = decodeObject(trackingJSON); err != nil {
		return nil, fmt.Errorf("failed to decode funnel tracking: %w", err)
	}
	if def.Meta, err = decodeObject(metaJSON); err != nil {
		return nil, fmt.Errorf("failed to decode funnel meta: %w", err)
	}

	if def.Steps, err = r.findSteps(rowID); err != nil {
		return nil, err
	}

	return &def, nil
}

// ResolveIDBySlug returns the funnel row id for a slug, or "" when unknown.
func (r *SQLFunnelRepository) ResolveIDBySlug(slug string) (string, error) {
	const query = `SELECT id FROM funnels WHERE slug = ?`

	var id string
	err := r.db.QueryRow(query, slug).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// StepIDMap maps authored step ids to funnel_steps row ids for denormalized
// response rows.
func (r *SQLFunnelRepository) StepIDMap(funnelID string) (map[string]string, error) {
	const query = `SELECT step_id, id FROM funnel_steps WHERE funnel_id = ?`

	rows, err := r.db.Query(query, funnelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var stepID, rowID string
		if err := rows.Scan(&stepID, &rowID); err != nil {
			return nil, err
		}
		result[stepID] = rowID
	}
	return result, rows.Err()
}

// findSteps loads a funnel's steps in authored order.
func (r *SQLFunnelRepository) findSteps(funnelRowID string) ([]funnel.Step, error) {
	const query = `
		SELECT step_id, type, config, show_if
		FROM funnel_steps
		WHERE funnel_id = ?
		ORDER BY sort_order ASC`

	rows, err := r.db.Query(query, funnelRowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []funnel.Step
	for rows.Next() {
		step, err := r.scanStepFromRows(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// scanStepFromRows is a helper to scan one funnel_steps row into a Step.
func (r *SQLFunnelRepository) scanStepFromRows(rows *sql.Rows) (funnel.Step, error) {
	var (
		step       funnel.Step
		stepType   string
		configJSON sql.NullString
		showIfJSON sql.NullString
	)

	if err := rows.Scan(&step.ID, &stepType, &configJSON, &showIfJSON); err != nil {
		return funnel.Step{}, err
	}
	step.Type = funnel.StepType(stepType)

	var err error
	if step.Config, err = decodeObject(configJSON); err != nil {
		return funnel.Step{}, fmt.Errorf("failed to decode step config for %s: %w", step.ID, err)
	}

	if showIfJSON.Valid && showIfJSON.String != "" {
		var cond funnel.Condition
		if err := json.Unmarshal([]byte(showIfJSON.String), &cond); err != nil {
			return funnel.Step{}, fmt.Errorf("failed to decode show_if for %s: %w", step.ID, err)
		}
		step.ShowIf = &cond
	}

	return step, nil
}

func decodeObject(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
