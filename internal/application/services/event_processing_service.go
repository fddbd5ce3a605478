// Package services provides application-level orchestration services.
package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/analytics"
	"github.com/AuroraHealth/aurora-go/internal/domain/entities/tracking"
	"github.com/AuroraHealth/aurora-go/internal/domain/repositories"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/capi"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/email"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/messaging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/performance"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/security"
)

// ErrUnknownFunnel is returned when an event names a funnel slug that does
// not exist.
var ErrUnknownFunnel = errors.New("unknown funnel")

// RequestMeta carries per-request client facts the events themselves omit.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ProcessResult reports how an event was handled. Dropped and ignored
// events still acknowledge with 200; the client never retries on ingestion
// failure, so surfacing an error would only lose data.
type ProcessResult struct {
	Status string `json:"status"` // "ok", "dropped", or "ignored"
}

// EventProcessingService reconciles inbound funnel events against the
// session store. Each event is handled as an independent request; all
// ordering and duplication hazards are absorbed by insert-or-ignore and
// upsert primitives, never by application-level locks.
type EventProcessingService struct {
	funnelService *FunnelService
	funnelRepo    repositories.FunnelRepository
	sessionRepo   repositories.SessionRepository
	stepViewRepo  repositories.StepViewRepository
	responseRepo  repositories.ResponseRepository
	capiService   capi.Service       // nil when CAPI is not configured
	emailService  email.Service      // nil when lead notifications are not configured
	liveFeed      messaging.LiveFeed // nil when the live feed is disabled
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewEventProcessingService creates a new event processing service with its dependencies.
func NewEventProcessingService(
	funnelService *FunnelService,
	funnelRepo repositories.FunnelRepository,
	sessionRepo repositories.SessionRepository,
	stepViewRepo repositories.StepViewRepository,
	responseRepo repositories.ResponseRepository,
	capiService capi.Service,
	emailService email.Service,
	liveFeed messaging.LiveFeed,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *EventProcessingService {
	return &EventProcessingService{
		funnelService: funnelService,
		funnelRepo:    funnelRepo,
		sessionRepo:   sessionRepo,
		stepViewRepo:  stepViewRepo,
		responseRepo:  responseRepo,
		capiService:   capiService,
		emailService:  emailService,
		liveFeed:      liveFeed,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// ProcessEvent is the main entry point for event ingestion.
func (s *EventProcessingService) ProcessEvent(event *analytics.Event, meta RequestMeta) (*ProcessResult, error) {
	marker := s.perfTracker.StartOperation("process_event_" + string(event.Type))
	defer marker.Complete()

	var (
		result *ProcessResult
		err    error
	)

	switch event.Type {
	case analytics.EventFunnelStart:
		result, err = s.processFunnelStart(event, meta)
	case analytics.EventStepView:
		result, err = s.processStepView(event, meta)
	case analytics.EventResponse:
		result, err = s.processResponse(event)
	case analytics.EventLead, analytics.EventComplete:
		result, err = s.processLeadOrComplete(event, meta)
	default:
		s.logger.Ingest().Warn("Unknown event type ignored",
			"type", string(event.Type),
			"sessionToken", logging.SanitizeSessionToken(event.SessionToken))
		result = &ProcessResult{Status: "ignored"}
	}

	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetSuccess(true)
	if result.Status == "ok" && s.liveFeed != nil {
		s.liveFeed.Broadcast(event)
	}
	return result, nil
}

// processFunnelStart resolves the funnel, creates the session once per
// token, and records the embedded first step view only when this request
// actually created the session row. Replaying the same funnel_start any
// number of times yields exactly one session and one first-step view.
func (s *EventProcessingService) processFunnelStart(event *analytics.Event, meta RequestMeta) (*ProcessResult, error) {
	funnelID, err := s.funnelRepo.ResolveIDBySlug(event.FunnelID)
	if err != nil {
		return nil, err
	}
	if funnelID == "" {
		return nil, ErrUnknownFunnel
	}

	session := s.buildSession(event, funnelID, meta)
	created, err := s.sessionRepo.InsertIgnore(session)
	if err != nil {
		return nil, err
	}

	if created && event.FirstStep != nil {
		view := &tracking.StepView{
			ID:        security.GenerateULID(),
			SessionID: session.ID,
			StepID:    event.FirstStep.StepID,
			StepIndex: event.FirstStep.StepIndex,
			StepType:  event.FirstStep.StepType,
			ViewedAt:  eventTime(event),
		}
		if err := s.stepViewRepo.Insert(view); err != nil {
			return nil, err
		}
	}

	s.logger.Ingest().Debug("Funnel start processed",
		"funnel", event.FunnelID,
		"sessionToken", logging.SanitizeSessionToken(event.SessionToken),
		"created", created)
	return &ProcessResult{Status: "ok"}, nil
}

// processStepView records a view, lazily creating the session when the
// funnel_start was lost or delayed. Unresolvable views are dropped
// silently; they are telemetry, not critical writes.
func (s *EventProcessingService) processStepView(event *analytics.Event, meta RequestMeta) (*ProcessResult, error) {
	session, err := s.sessionRepo.FindByToken(event.SessionToken)
	if err != nil {
		return nil, err
	}

	if session == nil && event.FunnelID != "" {
		session, err = s.lazilyCreateSession(event, meta)
		if err != nil {
			return nil, err
		}
	}

	if session == nil {
		s.logger.Ingest().Debug("Step view dropped, no resolvable session",
			"sessionToken", logging.SanitizeSessionToken(event.SessionToken))
		return &ProcessResult{Status: "dropped"}, nil
	}

	if err := s.backfillUTM(session, event); err != nil {
		return nil, err
	}

	stepIndex := 0
	if event.StepIndex != nil {
		stepIndex = *event.StepIndex
	}
	view := &tracking.StepView{
		ID:        security.GenerateULID(),
		SessionID: session.ID,
		StepID:    event.StepID,
		StepIndex: stepIndex,
		StepType:  event.StepType,
		ViewedAt:  eventTime(event),
	}
	if err := s.stepViewRepo.Insert(view); err != nil {
		return nil, err
	}

	return &ProcessResult{Status: "ok"}, nil
}

// processResponse upserts an answer keyed on (session, step). There is no
// lazy session creation here: an answer without a known session cannot be
// attributed meaningfully, so it is dropped.
func (s *EventProcessingService) processResponse(event *analytics.Event) (*ProcessResult, error) {
	session, err := s.sessionRepo.FindByToken(event.SessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.logger.Ingest().Debug("Response dropped, no session for token",
			"sessionToken", logging.SanitizeSessionToken(event.SessionToken))
		return &ProcessResult{Status: "dropped"}, nil
	}

	if err := s.backfillUTM(session, event); err != nil {
		return nil, err
	}

	value, err := encodeValue(event.Value)
	if err != nil {
		return nil, err
	}

	response := &tracking.Response{
		ID:        security.GenerateULID(),
		SessionID: session.ID,
		StepID:    event.StepID,
		Value:     value,
		CreatedAt: eventTime(event),
	}
	if stepRowID := s.resolveStepRowID(session.FunnelID, event.StepID); stepRowID != "" {
		response.FunnelStepID = &stepRowID
	}

	if err := s.responseRepo.Upsert(response); err != nil {
		return nil, err
	}

	return &ProcessResult{Status: "ok"}, nil
}

// processLeadOrComplete updates the session's email and, for complete, its
// completion timestamp. Both trigger the revenue-grade side effects: a
// Conversions API event and, for leads, the internal notification email.
func (s *EventProcessingService) processLeadOrComplete(event *analytics.Event, meta RequestMeta) (*ProcessResult, error) {
	session, err := s.sessionRepo.FindByToken(event.SessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.logger.Ingest().Debug("Event dropped, no session for token",
			"type", string(event.Type),
			"sessionToken", logging.SanitizeSessionToken(event.SessionToken))
		return &ProcessResult{Status: "dropped"}, nil
	}

	if event.Email != "" {
		if err := s.sessionRepo.UpdateEmail(session.ID, event.Email); err != nil {
			return nil, err
		}
	}
	if event.Type == analytics.EventComplete {
		if err := s.sessionRepo.MarkCompleted(session.ID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	if err := s.backfillUTM(session, event); err != nil {
		return nil, err
	}

	s.dispatchConversion(event, meta)
	if event.Type == analytics.EventLead && event.Email != "" {
		s.dispatchLeadNotification(event)
	}

	return &ProcessResult{Status: "ok"}, nil
}

// lazilyCreateSession is the fallback for a step_view arriving before its
// funnel_start. It races the real funnel_start at the unique token index;
// whichever insert loses becomes a no-op and the winner's row is used.
func (s *EventProcessingService) lazilyCreateSession(event *analytics.Event, meta RequestMeta) (*tracking.Session, error) {
	funnelID, err := s.funnelRepo.ResolveIDBySlug(event.FunnelID)
	if err != nil {
		return nil, err
	}
	if funnelID == "" {
		return nil, nil
	}

	session := s.buildSession(event, funnelID, meta)
	created, err := s.sessionRepo.InsertIgnore(session)
	if err != nil {
		return nil, err
	}
	if created {
		return session, nil
	}
	return s.sessionRepo.FindByToken(event.SessionToken)
}

func (s *EventProcessingService) buildSession(event *analytics.Event, funnelID string, meta RequestMeta) *tracking.Session {
	session := &tracking.Session{
		ID:           security.GenerateULID(),
		FunnelID:     funnelID,
		SessionToken: event.SessionToken,
		StartedAt:    eventTime(event),
	}
	if meta.IP != "" {
		session.IP = &meta.IP
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}
	if utmJSON := encodeUTM(event.UTMParams); utmJSON != "" {
		session.UTMParams = &utmJSON
	}
	return session
}

// backfillUTM writes UTM parameters onto the session only when the event
// carries them and the session has none yet. The SQL guard makes the write
// a no-op otherwise, so calling it unconditionally is safe.
func (s *EventProcessingService) backfillUTM(session *tracking.Session, event *analytics.Event) error {
	utmJSON := encodeUTM(event.UTMParams)
	if utmJSON == "" {
		return nil
	}
	if session.UTMParams != nil && *session.UTMParams != "" {
		return nil
	}
	return s.sessionRepo.BackfillUTM(session.ID, utmJSON)
}

// resolveStepRowID denormalizes the authored step id into the funnel_steps
// row id. Failure here never blocks the response write.
func (s *EventProcessingService) resolveStepRowID(funnelID, stepID string) string {
	stepMap, err := s.funnelRepo.StepIDMap(funnelID)
	if err != nil {
		s.logger.Ingest().Warn("Step id resolution failed", "funnelId", funnelID, "error", err.Error())
		return ""
	}
	return stepMap[stepID]
}

// dispatchConversion forwards a lead or complete to Meta's Conversions API
// on its own goroutine. The client carries its own bounded retry; a failure
// is logged and never affects the HTTP response.
func (s *EventProcessingService) dispatchConversion(event *analytics.Event, meta RequestMeta) {
	if s.capiService == nil {
		return
	}

	eventName := "Lead"
	if event.Type == analytics.EventComplete {
		eventName = "CompleteRegistration"
	}

	capiEvent := capi.Event{
		EventName: eventName,
		EventTime: eventTime(event),
		EventID:   event.EventID,
		UserData: capi.UserData{
			Email:     event.Email,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			FBC:       event.ClickIDs["fbc"],
			FBP:       event.ClickIDs["fbp"],
		},
		CustomData: map[string]any{"funnel_id": event.FunnelID},
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.CAPI().Error("Panic recovered in conversion dispatch", "error", r)
			}
		}()
		if err := s.capiService.SendEvents([]capi.Event{capiEvent}); err != nil {
			s.logger.CAPI().Error("Conversion event delivery failed",
				"eventName", eventName, "error", err.Error())
		}
	}()
}

// dispatchLeadNotification sends the internal lead alert, fire-and-forget.
func (s *EventProcessingService) dispatchLeadNotification(event *analytics.Event) {
	if s.emailService == nil {
		return
	}

	funnelName := event.FunnelID
	if def, err := s.funnelService.GetDefinition(event.FunnelID); err == nil && def != nil {
		funnelName = def.Name
	}

	leadEmail := event.Email
	sessionToken := event.SessionToken
	utm := event.UTMParams

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Email().Error("Panic recovered in lead notification dispatch", "error", r)
			}
		}()
		if err := s.emailService.SendLeadNotificationEmail(leadEmail, funnelName, sessionToken, utm); err != nil {
			s.logger.Email().Error("Lead notification delivery failed",
				"email", logging.SanitizeEmail(leadEmail), "error", err.Error())
		}
	}()
}

// eventTime parses the envelope timestamp, falling back to now. Client
// clocks are untrusted but useful for ordering; a malformed stamp never
// rejects the event.
func eventTime(event *analytics.Event) time.Time {
	if event.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, event.Timestamp); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// encodeValue stores answers as canonical JSON text so strings, numbers,
// and checkbox arrays all round-trip through one TEXT column.
func encodeValue(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeUTM(utm map[string]string) string {
	if len(utm) == 0 {
		return ""
	}
	raw, err := json.Marshal(utm)
	if err != nil {
		return ""
	}
	return string(raw)
}
