package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SinkClass is the privacy classification of an outbound sink. Every sink
// must be classified before being wired in: marketing sinks receive a
// redacted envelope, first-party sinks receive the full event.
type SinkClass int

const (
	ClassFirstParty SinkClass = iota
	ClassMarketing
)

// Sink delivers one normalized event to an outbound destination.
type Sink interface {
	Name() string
	Class() SinkClass
	Deliver(ctx context.Context, event Event) error
}

// BackendSink posts full events to the first-party ingestion endpoint.
type BackendSink struct {
	Endpoint string
	Client   *http.Client
}

func (s *BackendSink) Name() string     { return "backend" }
func (s *BackendSink) Class() SinkClass { return ClassFirstParty }

func (s *BackendSink) Deliver(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ingestion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ingestion endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// CallSurface models a pixel/tag-manager style global call surface:
// an event name plus a flat parameter map.
type CallSurface func(event string, params map[string]any) error

// PixelSink adapts events onto a Meta-pixel style call surface. It is a
// marketing sink and only ever sees the redacted envelope.
type PixelSink struct {
	Call CallSurface
}

func (s *PixelSink) Name() string     { return "pixel" }
func (s *PixelSink) Class() SinkClass { return ClassMarketing }

func (s *PixelSink) Deliver(_ context.Context, event Event) error {
	if s.Call == nil {
		return nil
	}

	params := map[string]any{"funnel_id": event.FunnelID}
	if event.StepIndex != nil {
		params["step_index"] = *event.StepIndex
	}
	if event.StepType != "" {
		params["step_type"] = event.StepType
	}

	switch event.Type {
	case EventFunnelStart:
		return s.Call("FunnelStart", params)
	case EventStepView:
		return s.Call("FunnelStepView", params)
	case EventResponse:
		return s.Call("FunnelResponse", params)
	case EventLead:
		params["event_id"] = event.EventID
		return s.Call("Lead", params)
	case EventComplete:
		params["event_id"] = event.EventID
		return s.Call("CompleteRegistration", params)
	}
	return nil
}

// TagManagerSink adapts events onto a gtag style call surface. Marketing
// classified, same redaction contract as PixelSink.
type TagManagerSink struct {
	Call CallSurface
}

func (s *TagManagerSink) Name() string     { return "tag-manager" }
func (s *TagManagerSink) Class() SinkClass { return ClassMarketing }

func (s *TagManagerSink) Deliver(_ context.Context, event Event) error {
	if s.Call == nil {
		return nil
	}

	params := map[string]any{"funnel_id": event.FunnelID}
	if event.StepIndex != nil {
		params["step_index"] = *event.StepIndex
	}
	if event.StepType != "" {
		params["step_type"] = event.StepType
	}

	switch event.Type {
	case EventFunnelStart:
		return s.Call("funnel_start", params)
	case EventStepView:
		return s.Call("funnel_step_view", params)
	case EventResponse:
		return s.Call("funnel_response", params)
	case EventLead:
		params["event_id"] = event.EventID
		return s.Call("generate_lead", params)
	case EventComplete:
		params["event_id"] = event.EventID
		return s.Call("funnel_complete", params)
	}
	return nil
}
