package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
)

// Config configures an Emitter for one funnel run.
type Config struct {
	FunnelID     string
	SessionToken string // generated when empty
	UTMParams    map[string]string
	ClickIDs     map[string]string
	Sinks        []Sink
	Logger       *slog.Logger

	MaxRetries      int           // bounded retry for lead/complete delivery
	DeliveryTimeout time.Duration // per-delivery context timeout
	DrainTimeout    time.Duration // how long Teardown waits for in-flight deliveries
}

// Emitter translates state machine signals into normalized events and fans
// them out to classified sinks. Delivery is asynchronous and best-effort:
// sink failures are logged, never surfaced to the caller. The emitter is an
// explicitly constructed instance with an Init/Teardown lifecycle rather
// than ambient global state.
type Emitter struct {
	funnelID     string
	sessionToken string
	utmParams    map[string]string
	clickIDs     map[string]string
	sinks        []Sink
	logger       *slog.Logger

	maxRetries      int
	deliveryTimeout time.Duration
	drainTimeout    time.Duration

	mu              sync.Mutex
	initialized     bool
	lastResponseKey string
	wg              sync.WaitGroup
}

// NewEmitter creates an emitter. Call Init before recording signals.
func NewEmitter(cfg Config) *Emitter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	deliveryTimeout := cfg.DeliveryTimeout
	if deliveryTimeout <= 0 {
		deliveryTimeout = 10 * time.Second
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}

	return &Emitter{
		funnelID:        cfg.FunnelID,
		sessionToken:    cfg.SessionToken,
		utmParams:       cfg.UTMParams,
		clickIDs:        cfg.ClickIDs,
		sinks:           cfg.Sinks,
		logger:          logger,
		maxRetries:      maxRetries,
		deliveryTimeout: deliveryTimeout,
		drainTimeout:    drainTimeout,
	}
}

// Init starts the run's analytics lifecycle and emits funnel_start with the
// first step's view folded in. Folding eliminates the request-ordering race
// between two independently sent HTTP calls: the server records session and
// first view in one logical operation.
func (e *Emitter) Init(firstStepID string, firstStepType string) {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = true
	if e.sessionToken == "" {
		e.sessionToken = ulid.Make().String()
	}
	e.mu.Unlock()

	e.dispatch(Event{
		Type: EventFunnelStart,
		FirstStep: &StepView{
			StepID:    firstStepID,
			StepIndex: 0,
			StepType:  firstStepType,
		},
	})
}

// SessionToken returns the run's session token, generating it on first use.
func (e *Emitter) SessionToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessionToken == "" {
		e.sessionToken = ulid.Make().String()
	}
	return e.sessionToken
}

// TrackStepView emits a step_view event for a position change.
func (e *Emitter) TrackStepView(stepID string, stepIndex int, stepType string) {
	if !e.ready() {
		return
	}
	index := stepIndex
	e.dispatch(Event{
		Type:      EventStepView,
		StepID:    stepID,
		StepIndex: &index,
		StepType:  stepType,
	})
}

// TrackResponse emits a response event. An emission identical to the
// immediately preceding response (same stepId, byte-identical value) is
// suppressed; this guards against double-invoked UI handlers, not against
// legitimately re-answering with a different value later.
func (e *Emitter) TrackResponse(stepID string, value any) {
	if !e.ready() {
		return
	}

	key := stepID + "\x00" + canonicalValue(value)
	e.mu.Lock()
	if key == e.lastResponseKey {
		e.mu.Unlock()
		e.logger.Debug("Suppressed duplicate response event", "stepId", stepID)
		return
	}
	e.lastResponseKey = key
	e.mu.Unlock()

	e.dispatch(Event{
		Type:   EventResponse,
		StepID: stepID,
		Value:  value,
	})
}

// TrackLead emits a lead event with a fresh event id for downstream dedup.
func (e *Emitter) TrackLead(email string) {
	if !e.ready() {
		return
	}
	e.dispatch(Event{
		Type:     EventLead,
		Email:    email,
		EventID:  ulid.Make().String(),
		ClickIDs: e.clickIDs,
	})
}

// TrackCompletion emits a complete event carrying the full response snapshot.
func (e *Emitter) TrackCompletion(responses map[string]any, email string) {
	if !e.ready() {
		return
	}
	e.dispatch(Event{
		Type:      EventComplete,
		Responses: responses,
		Email:     email,
		EventID:   ulid.Make().String(),
		ClickIDs:  e.clickIDs,
	})
}

// Teardown waits for in-flight deliveries to finish, up to the drain timeout.
func (e *Emitter) Teardown() {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.drainTimeout):
		e.logger.Warn("Emitter teardown timed out with deliveries in flight")
	}
}

func (e *Emitter) ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		e.logger.Debug("Dropped analytics signal before Init")
	}
	return e.initialized
}

// dispatch stamps the envelope and fans it out to all sinks asynchronously.
// Marketing sinks receive the redacted envelope.
func (e *Emitter) dispatch(event Event) {
	event.FunnelID = e.funnelID
	event.SessionToken = e.SessionToken()
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if event.UTMParams == nil {
		event.UTMParams = e.utmParams
	}

	for _, sink := range e.sinks {
		payload := event
		if sink.Class() == ClassMarketing {
			payload = event.Redacted()
		}

		e.wg.Add(1)
		go func(sink Sink, payload Event) {
			defer e.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("Sink delivery panicked", "sink", sink.Name(), "panic", fmt.Sprint(r))
				}
			}()
			e.deliver(sink, payload)
		}(sink, payload)
	}
}

func (e *Emitter) deliver(sink Sink, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.deliveryTimeout)
	defer cancel()

	operation := func() error {
		return sink.Deliver(ctx, event)
	}

	var err error
	if event.Retryable() {
		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.maxRetries)),
			ctx,
		)
		err = backoff.Retry(operation, policy)
	} else {
		err = operation()
	}

	if err != nil {
		e.logger.Warn("Sink delivery failed",
			"sink", sink.Name(),
			"eventType", string(event.Type),
			"error", err.Error(),
		)
	}
}

// canonicalValue renders a response value into a stable byte form for the
// duplicate-emission comparison.
func canonicalValue(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
