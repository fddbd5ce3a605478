package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records delivered events and can fail a number of initial attempts.
type captureSink struct {
	name     string
	class    SinkClass
	failures int

	mu       sync.Mutex
	attempts int
	events   []Event
}

func (s *captureSink) Name() string     { return s.name }
func (s *captureSink) Class() SinkClass { return s.class }

func (s *captureSink) Deliver(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("transient delivery failure")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func newTestEmitter(sinks ...Sink) *Emitter {
	return NewEmitter(Config{
		FunnelID:     "discover-aurora",
		SessionToken: "01TESTSESSIONTOKEN0000000",
		UTMParams:    map[string]string{"utm_source": "meta"},
		Sinks:        sinks,
		MaxRetries:   2,
		DrainTimeout: 2 * time.Second,
	})
}

func eventsOfType(events []Event, eventType EventType) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestEmitterInitFoldsFirstStepView(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty}
	e := newTestEmitter(sink)

	e.Init("welcome", "welcome")
	e.Teardown()

	events := sink.delivered()
	require.Len(t, events, 1)
	start := events[0]
	assert.Equal(t, EventFunnelStart, start.Type)
	assert.Equal(t, "discover-aurora", start.FunnelID)
	assert.Equal(t, "01TESTSESSIONTOKEN0000000", start.SessionToken)
	assert.Equal(t, map[string]string{"utm_source": "meta"}, start.UTMParams)
	require.NotNil(t, start.FirstStep)
	assert.Equal(t, "welcome", start.FirstStep.StepID)
	assert.Equal(t, 0, start.FirstStep.StepIndex)
}

func TestEmitterInitIsIdempotent(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty}
	e := newTestEmitter(sink)

	e.Init("welcome", "welcome")
	e.Init("welcome", "welcome")
	e.Teardown()

	assert.Len(t, sink.delivered(), 1)
}

func TestEmitterDropsSignalsBeforeInit(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty}
	e := newTestEmitter(sink)

	e.TrackStepView("welcome", 0, "welcome")
	e.TrackResponse("pregnancy-status", "trying")
	e.Teardown()

	assert.Empty(t, sink.delivered())
}

func TestEmitterSuppressesImmediateDuplicateResponse(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty}
	e := newTestEmitter(sink)
	e.Init("welcome", "welcome")

	e.TrackResponse("pregnancy-status", "trying")
	e.TrackResponse("pregnancy-status", "trying")
	e.Teardown()

	responses := eventsOfType(sink.delivered(), EventResponse)
	require.Len(t, responses, 1)
	assert.Equal(t, "pregnancy-status", responses[0].StepID)
	assert.Equal(t, "trying", responses[0].Value)
}

func TestEmitterAllowsReAnswerWithDifferentValue(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty}
	e := newTestEmitter(sink)
	e.Init("welcome", "welcome")

	e.TrackResponse("pregnancy-status", "trying")
	e.TrackResponse("pregnancy-status", "pregnant")
	e.TrackResponse("pregnancy-status", "trying")
	e.Teardown()

	responses := eventsOfType(sink.delivered(), EventResponse)
	assert.Len(t, responses, 3)
}

func TestEmitterRedactsMarketingSinks(t *testing.T) {
	backend := &captureSink{name: "backend", class: ClassFirstParty}
	pixel := &captureSink{name: "pixel", class: ClassMarketing}
	e := newTestEmitter(backend, pixel)
	e.Init("welcome", "welcome")

	e.TrackStepView("pregnancy-status", 1, "multiple-choice")
	e.TrackResponse("pregnancy-status", "trying")
	e.TrackLead("kai@example.com")
	e.TrackCompletion(map[string]any{"pregnancy-status": "trying"}, "kai@example.com")
	e.Teardown()

	full := backend.delivered()
	require.Len(t, full, 5)
	for _, event := range eventsOfType(full, EventLead) {
		assert.Equal(t, "kai@example.com", event.Email)
	}

	for _, event := range pixel.delivered() {
		assert.Empty(t, event.StepID, "marketing sink must never see step ids")
		assert.Nil(t, event.Value, "marketing sink must never see raw responses")
		assert.Empty(t, event.Email, "marketing sink must never see email")
		assert.Nil(t, event.Responses, "marketing sink must never see the snapshot")
		if event.FirstStep != nil {
			assert.Empty(t, event.FirstStep.StepID)
		}
		assert.Equal(t, "discover-aurora", event.FunnelID)
	}

	views := eventsOfType(pixel.delivered(), EventStepView)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].StepIndex)
	assert.Equal(t, 1, *views[0].StepIndex)
	assert.Equal(t, "multiple-choice", views[0].StepType)
}

func TestEmitterRetriesLeadDelivery(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty, failures: 1}
	e := newTestEmitter(sink)
	e.Init("welcome", "welcome")

	e.TrackLead("kai@example.com")
	e.Teardown()

	leads := eventsOfType(sink.delivered(), EventLead)
	require.Len(t, leads, 1)
	assert.NotEmpty(t, leads[0].EventID)
}

func TestEmitterDoesNotRetryStepViews(t *testing.T) {
	sink := &captureSink{name: "backend", class: ClassFirstParty, failures: 3}
	e := newTestEmitter(sink)
	e.Init("welcome", "welcome")
	e.Teardown()
	baseline := sink.attemptCount()

	e.TrackStepView("pregnancy-status", 1, "multiple-choice")
	e.Teardown()

	assert.Equal(t, baseline+1, sink.attemptCount())
}
