// Package funnel implements the funnel engine: step definitions, the
// visibility condition evaluator, the visible-step projector, and the
// run state machine. The package is pure and does no I/O; persistence
// and analytics delivery are collaborators injected from outside.
package funnel

// StepType enumerates the supported step kinds.
type StepType string

const (
	StepWelcome        StepType = "welcome"
	StepMultipleChoice StepType = "multiple-choice"
	StepCheckboxes     StepType = "checkboxes"
	StepEmail          StepType = "email"
	StepTextInput      StepType = "text-input"
	StepNumberPicker   StepType = "number-picker"
	StepInfoCard       StepType = "info-card"
	StepCheckout       StepType = "checkout"
	StepResult         StepType = "result"
)

// EmailKey is the generic response key an email answer is copied into so
// later steps can read it without knowing which step captured it.
const EmailKey = "email"

// Operator enumerates the visibility condition operators.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
)

// Condition gates a step's visibility on an earlier step's answer.
// Value is a single string for equals/not_equals and a string sequence
// for in/not_in.
type Condition struct {
	StepID   string   `json:"stepId"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Step is one entry in a funnel's authored step list. Config carries the
// type-specific payload (titles, options, placeholders) which the engine
// treats as opaque.
type Step struct {
	ID     string         `json:"id"`
	Type   StepType       `json:"type"`
	ShowIf *Condition     `json:"showIf,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// Definition is an immutable funnel definition, loaded once per run.
type Definition struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version,omitempty"`
	PriceVariant string         `json:"priceVariant,omitempty"`
	Steps        []Step         `json:"steps"`
	Theme        map[string]any `json:"theme,omitempty"`
	Tracking     map[string]any `json:"tracking,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// ResponseMap maps step ids to answer values. Values are strings, string
// sequences, numbers, or structured objects depending on the step type.
type ResponseMap map[string]any

// Clone returns a shallow copy of the response map.
func (r ResponseMap) Clone() ResponseMap {
	out := make(ResponseMap, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
