// Package analytics implements the funnel analytics emitter: a normalized
// event envelope, immediate-repeat deduplication, and asynchronous fan-out
// to classified sinks. The envelope doubles as the wire contract for the
// server's ingestion endpoint.
package analytics

// EventType enumerates the normalized event kinds.
type EventType string

const (
	EventFunnelStart EventType = "funnel_start"
	EventStepView    EventType = "step_view"
	EventResponse    EventType = "response"
	EventLead        EventType = "lead"
	EventComplete    EventType = "complete"
)

// StepView is the first step's view folded into funnel_start so the view
// can never be processed before the session row exists.
type StepView struct {
	StepID    string `json:"step_id"`
	StepIndex int    `json:"step_index"`
	StepType  string `json:"step_type"`
}

// Event is the normalized outbound envelope. Field presence varies by type;
// see the per-type emit methods on Emitter.
type Event struct {
	Type         EventType         `json:"type"`
	FunnelID     string            `json:"funnel_id"`
	SessionToken string            `json:"session_id"`
	Timestamp    string            `json:"timestamp"`
	StepID       string            `json:"step_id,omitempty"`
	StepIndex    *int              `json:"step_index,omitempty"`
	StepType     string            `json:"step_type,omitempty"`
	Value        any               `json:"response,omitempty"`
	Email        string            `json:"email,omitempty"`
	EventID      string            `json:"event_id,omitempty"`
	Responses    map[string]any    `json:"responses,omitempty"`
	UTMParams    map[string]string `json:"utm_params,omitempty"`
	ClickIDs     map[string]string `json:"click_ids,omitempty"`
	FirstStep    *StepView         `json:"first_step,omitempty"`
}

// Redacted returns the subset of the event a marketing sink is allowed to
// see. Marketing sinks never receive literal step ids, raw response values,
// full response snapshots, or email addresses; they keep funnel id, step
// index, step type, and the dedup event id.
func (e Event) Redacted() Event {
	out := e
	out.StepID = ""
	out.Value = nil
	out.Email = ""
	out.Responses = nil
	if e.FirstStep != nil {
		out.FirstStep = &StepView{
			StepIndex: e.FirstStep.StepIndex,
			StepType:  e.FirstStep.StepType,
		}
	}
	return out
}

// Retryable reports whether delivery of this event should be retried on
// transient failure. Only the revenue-relevant kinds are retried; views and
// responses are telemetry-grade, single best-effort.
func (e Event) Retryable() bool {
	return e.Type == EventLead || e.Type == EventComplete
}
