package funnel

import (
	"time"
)

// Tracker receives analytics signals from the state machine. Implementations
// must not block: delivery is fire-and-forget from the machine's point of
// view, so a slow or failing sink can never delay navigation.
type Tracker interface {
	TrackStepView(stepID string, stepIndex int, stepType string)
	TrackResponse(stepID string, value any)
	TrackLead(email string)
	TrackCompletion(responses map[string]any, email string)
}

// NopTracker discards all signals.
type NopTracker struct{}

func (NopTracker) TrackStepView(string, int, string)      {}
func (NopTracker) TrackResponse(string, any)              {}
func (NopTracker) TrackLead(string)                       {}
func (NopTracker) TrackCompletion(map[string]any, string) {}

// Completion is the snapshot captured when a run reaches its terminal state.
type Completion struct {
	FunnelID     string      `json:"funnelId"`
	PriceVariant string      `json:"priceVariant,omitempty"`
	Responses    ResponseMap `json:"responses"`
	Email        string      `json:"email,omitempty"`
	StartedAt    time.Time   `json:"startedAt"`
	CompletedAt  time.Time   `json:"completedAt"`
}

// Machine owns one funnel run: the response map, the current position in
// the visible-step projection, and the completion state. It is not safe
// for concurrent use; all mutations come from a single caller.
type Machine struct {
	def        *Definition
	tracker    Tracker
	responses  ResponseMap
	visible    []Step
	position   int
	complete   bool
	completion *Completion
	startedAt  time.Time
}

// NewMachine starts a run at the first visible step. The first step's view
// signal is not emitted here: it is folded into the emitter's funnel_start
// event so the view can never arrive at the server before the session does.
func NewMachine(def *Definition, tracker Tracker) *Machine {
	if tracker == nil {
		tracker = NopTracker{}
	}
	m := &Machine{
		def:       def,
		tracker:   tracker,
		responses: make(ResponseMap),
		position:  0,
		startedAt: time.Now().UTC(),
	}
	m.visible = VisibleSteps(def, m.responses)
	return m
}

// RecordOption modifies a RecordResponse call.
type RecordOption func(*recordOptions)

type recordOptions struct {
	skipTracking bool
}

// SkipTracking suppresses the response analytics signal. Used when a value
// is set as a side effect of another step, such as copying an email answer
// into the generic email key, so the copy never double-counts.
func SkipTracking() RecordOption {
	return func(o *recordOptions) { o.skipTracking = true }
}

// RecordResponse merges a response into the run (overwrite-by-key),
// recomputes the visible projection, and clamps the position into the new
// valid range. An email step's answer is additionally copied into the
// generic email key untracked, and emits a lead signal.
func (m *Machine) RecordResponse(stepID string, value any, opts ...RecordOption) {
	if m.complete {
		return
	}

	var options recordOptions
	for _, opt := range opts {
		opt(&options)
	}

	m.responses[stepID] = value
	m.reproject()

	if !options.skipTracking {
		m.tracker.TrackResponse(stepID, value)
	}

	if step, ok := m.findStep(stepID); ok && step.Type == StepEmail && stepID != EmailKey {
		if email, ok := value.(string); ok && email != "" {
			m.responses[EmailKey] = email
			m.tracker.TrackLead(email)
		}
	}
}

// Advance moves forward one visible step, or transitions to the terminal
// Complete state when already at the last visible step. Advancing a
// completed run is a no-op.
func (m *Machine) Advance() {
	if m.complete {
		return
	}

	if m.position >= len(m.visible)-1 {
		email, _ := m.responses[EmailKey].(string)
		m.completion = &Completion{
			FunnelID:     m.def.ID,
			PriceVariant: m.def.PriceVariant,
			Responses:    m.responses.Clone(),
			Email:        email,
			StartedAt:    m.startedAt,
			CompletedAt:  time.Now().UTC(),
		}
		m.complete = true
		m.tracker.TrackCompletion(m.completion.Responses, email)
		return
	}

	m.position++
	m.emitCurrentView()
}

// Retreat moves back one visible step. No-op at the first step or after
// completion.
func (m *Machine) Retreat() {
	if m.complete || m.position == 0 {
		return
	}
	m.position--
	m.emitCurrentView()
}

// JumpTo moves directly to a visible index. Out-of-range requests are
// ignored without error: callers are internal UI affordances, not
// untrusted input.
func (m *Machine) JumpTo(index int) {
	if m.complete || index < 0 || index >= len(m.visible) || index == m.position {
		return
	}
	m.position = index
	m.emitCurrentView()
}

// Response returns the recorded answer for a step, if any.
func (m *Machine) Response(stepID string) (any, bool) {
	value, ok := m.responses[stepID]
	return value, ok
}

// Responses returns a copy of the current response map.
func (m *Machine) Responses() ResponseMap {
	return m.responses.Clone()
}

// Position returns the current index into the visible projection.
func (m *Machine) Position() int {
	return m.position
}

// CurrentStep returns the step at the current position.
func (m *Machine) CurrentStep() (Step, bool) {
	if m.position < 0 || m.position >= len(m.visible) {
		return Step{}, false
	}
	return m.visible[m.position], true
}

// VisibleSteps returns a copy of the current visible projection.
func (m *Machine) VisibleSteps() []Step {
	out := make([]Step, len(m.visible))
	copy(out, m.visible)
	return out
}

// IsComplete reports whether the run has reached its terminal state.
func (m *Machine) IsComplete() bool {
	return m.complete
}

// Completion returns the terminal snapshot, or nil while in progress.
func (m *Machine) Completion() *Completion {
	return m.completion
}

// reproject recomputes the visible projection and clamps the position into
// the new valid range. If clamping moves the index, the newly exposed step
// emits a view signal, same as any other position change.
func (m *Machine) reproject() {
	m.visible = VisibleSteps(m.def, m.responses)

	if len(m.visible) == 0 {
		m.position = 0
		return
	}
	if m.position >= len(m.visible) {
		m.position = len(m.visible) - 1
		m.emitCurrentView()
	}
}

func (m *Machine) emitCurrentView() {
	if step, ok := m.CurrentStep(); ok {
		m.tracker.TrackStepView(step.ID, m.position, string(step.Type))
	}
}

func (m *Machine) findStep(stepID string) (Step, bool) {
	for _, step := range m.def.Steps {
		if step.ID == stepID {
			return step, true
		}
	}
	return Step{}, false
}
