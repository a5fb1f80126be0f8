package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/bamarler/flaZK/internal/audit"
	"github.com/bamarler/flaZK/internal/device"
	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/platform/tracer"
	"github.com/bamarler/flaZK/internal/proof"
	"github.com/bamarler/flaZK/internal/verification/metrics"
	"github.com/bamarler/flaZK/internal/verification/models"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store defines the persistence interface for verification sessions.
// Error Contract:
// - FindByID and CompletePending return sentinel.ErrNotFound for unknown ids
// - CompletePending returns sentinel.ErrInvalidState when the session is
//   already terminal; the transition is atomic so exactly one caller wins
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	CompletePending(ctx context.Context, sessionID id.SessionID, outcome models.Outcome) (*models.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]*models.Session, error)
}

type Option func(*Service)

const defaultSessionTTL = 30 * time.Minute

// Service owns the verification session lifecycle: creation on behalf of an
// authenticated client, status reads scoped to that client, and the
// submit-once completion driven by the untrusted verification context.
type Service struct {
	store         Store
	auditor       *audit.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        tracer.Tracer
	device        *device.Service
	widgetBaseURL string
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewService(store Store, auditor *audit.Publisher, logger *slog.Logger, widgetBaseURL string, opts ...Option) *Service {
	svc := &Service{
		store:         store,
		auditor:       auditor,
		logger:        logger,
		tracer:        tracer.NewNoop(),
		widgetBaseURL: widgetBaseURL,
		sessionTTL:    defaultSessionTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sessionTTL <= 0 {
		svc.sessionTTL = defaultSessionTTL
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used around session operations.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithDevice enables device fingerprinting of completion submissions.
func WithDevice(d *device.Service) Option {
	return func(s *Service) {
		s.device = d
	}
}

// WithSessionTTL configures how long a pending session stays claimable.
// If not set or set to zero/negative, defaults to 30 minutes.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// CreateCommand carries a client-initiated session request.
type CreateCommand struct {
	ClientID     id.ClientID
	ClientName   string
	CallbackURL  string
	Requirements eligibility.Requirements
	DeliveryMode models.DeliveryMode
}

// CreateResult is the client-facing handoff for a new session.
type CreateResult struct {
	Session  *models.Session
	EntryURL string
}

// Create validates and persists a pending session and returns the entry URL
// that hands the flow to the verification context. The URL embeds everything
// the widget needs to resume statelessly.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (result *CreateResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionCreate,
		tracer.String(tracer.AttrClientID, cmd.ClientID.String()))
	defer func() { span.End(err) }()

	now := s.now()
	session, err := models.NewSession(cmd.ClientID, cmd.ClientName, cmd.CallbackURL, cmd.Requirements, cmd.DeliveryMode, now, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}

	entryURL, err := models.BuildEntryURL(s.widgetBaseURL, session)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(tracer.String(tracer.AttrSessionID, session.ID.String()))
	s.logger.InfoContext(ctx, "verification session created",
		"session_id", session.ID.String(),
		"client_id", session.ClientID.String(),
		"delivery_mode", string(session.DeliveryMode),
	)
	s.emitAudit(ctx, audit.Event{
		Timestamp: now,
		SessionID: session.ID.String(),
		ClientID:  session.ClientID.String(),
		Action:    audit.ActionSessionCreated,
	})
	if s.metrics != nil {
		s.metrics.IncrementSessionsCreated(session.ClientID.String())
	}

	return &CreateResult{Session: session, EntryURL: entryURL}, nil
}

// StatusView is the client-facing session status. Proof is present only for
// completed sessions.
type StatusView struct {
	SessionID id.SessionID
	Status    models.SessionStatus
	Proof     string
}

// GetStatus returns the session status for the owning client. Sessions of
// other clients and expired pending sessions both read as not found, so a
// probing caller cannot distinguish "someone else's" from "never existed".
func (s *Service) GetStatus(ctx context.Context, client id.ClientID, sessionID id.SessionID) (view *StatusView, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionStatus,
		tracer.String(tracer.AttrSessionID, sessionID.String()),
		tracer.String(tracer.AttrClientID, client.String()))
	defer func() { span.End(err) }()

	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ClientID != client {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}

	view = &StatusView{SessionID: session.ID, Status: session.Status}
	if session.Status == models.StatusCompleted {
		view.Proof = session.Proof
	}
	span.SetAttributes(tracer.String(tracer.AttrStatus, string(session.Status)))
	return view, nil
}

// GetForWidget returns the session for the verification context to resume.
// Authentication of the widget user happens at the transport layer.
func (s *Service) GetForWidget(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.findSession(ctx, sessionID)
}

// CompleteCommand is the submit-once terminal transition request from the
// verification context. Only the pass/fail flag and the opaque proof token
// cross this boundary.
type CompleteCommand struct {
	SessionID id.SessionID
	Success   bool
	Proof     string
	UserAgent string
}

// Complete applies the terminal transition. The first call wins; a second
// call is rejected with a conflict and re-fires no side effects. A successful
// completion must carry a well-formed non-sentinel proof token since the
// caller is an untrusted browser context.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (result *models.CompletionResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionComplete,
		tracer.String(tracer.AttrSessionID, cmd.SessionID.String()),
		tracer.Bool(tracer.AttrSuccess, cmd.Success))
	defer func() { span.End(err) }()
	started := s.now()

	if cmd.Success {
		if !proof.WellFormed(cmd.Proof) || cmd.Proof == proof.Sentinel {
			return nil, dErrors.New(dErrors.CodeValidation, "successful completion requires a valid proof token")
		}
	} else {
		// Failed sessions never carry a proof.
		cmd.Proof = ""
	}

	outcome := models.Outcome{
		Status:      models.StatusFailed,
		CompletedAt: started,
	}
	if cmd.Success {
		outcome.Status = models.StatusCompleted
		outcome.Proof = cmd.Proof
	}
	if s.device != nil {
		outcome.DeviceFingerprint = s.device.ComputeFingerprint(cmd.UserAgent)
	}

	session, err := s.store.CompletePending(ctx, cmd.SessionID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeConflict, "session already completed")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not complete session")
		}
	}

	result, err = s.buildCompletionResult(session)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(tracer.String(tracer.AttrStatus, string(session.Status)),
		tracer.String(tracer.AttrDeliveryMode, string(session.DeliveryMode)))
	s.logger.InfoContext(ctx, "verification session completed",
		"session_id", session.ID.String(),
		"client_id", session.ClientID.String(),
		"status", string(session.Status),
	)
	s.recordCompletion(ctx, session, cmd.UserAgent, started)

	return result, nil
}

// ExpireSessions removes pending sessions past their deadline and emits one
// expiry event per removed session. The cleanup worker drives this; Redis
// deployments expire keys natively and return nothing here.
func (s *Service) ExpireSessions(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not delete expired sessions")
	}
	for _, session := range expired {
		s.emitAudit(ctx, audit.Event{
			Timestamp: now,
			SessionID: session.ID.String(),
			ClientID:  session.ClientID.String(),
			Action:    audit.ActionSessionExpired,
			Reason:    "pending session aged out",
		})
	}
	if len(expired) > 0 && s.metrics != nil {
		s.metrics.IncrementSessionsExpired(len(expired))
	}
	return len(expired), nil
}

func (s *Service) findSession(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not read session")
	}
	if session.IsExpired(s.now()) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return session, nil
}

func (s *Service) buildCompletionResult(session *models.Session) (*models.CompletionResult, error) {
	origin, err := session.CallbackOrigin()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored callback URL is invalid")
	}

	u, err := url.Parse(session.CallbackURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored callback URL is invalid")
	}
	q := u.Query()
	q.Set("session", session.ID.String())
	success := session.Status == models.StatusCompleted
	if success {
		q.Set("status", "success")
		q.Set("proof", session.Proof)
	} else {
		q.Set("status", "failed")
	}
	u.RawQuery = q.Encode()

	msg := models.CompletionMessage{
		Type:      models.CompletionMessageType,
		SessionID: session.ID.String(),
		Success:   success,
	}
	if success {
		msg.Proof = session.Proof
	}

	return &models.CompletionResult{
		RedirectURL:  u.String(),
		Message:      msg,
		TargetOrigin: origin,
		DeliveryMode: session.DeliveryMode,
	}, nil
}

func (s *Service) recordCompletion(ctx context.Context, session *models.Session, userAgent string, started time.Time) {
	event := audit.Event{
		Timestamp: started,
		SessionID: session.ID.String(),
		ClientID:  session.ClientID.String(),
	}
	// The display name, not the raw User-Agent, so audit records stay
	// readable without leaking the full header string.
	if s.device != nil && userAgent != "" {
		event.Reason = "completed from " + device.ParseUserAgent(userAgent)
	}
	if session.Status == models.StatusCompleted {
		event.Action = audit.ActionSessionCompleted
		event.Decision = audit.DecisionRequirementsMet
	} else {
		event.Action = audit.ActionSessionFailed
		event.Decision = audit.DecisionRequirementsNotMet
	}
	s.emitAudit(ctx, event)

	if s.metrics == nil {
		return
	}
	s.metrics.IncrementSessionsCompleted(string(session.Status))
	s.metrics.ObserveCompleteLatency(s.now().Sub(started))
	if session.CompletedAt != nil {
		s.metrics.ObserveSessionDuration(session.CompletedAt.Sub(session.CreatedAt))
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"session_id", event.SessionID,
			"error", fmt.Sprintf("%v", err),
		)
	}
}
