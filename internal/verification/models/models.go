package models

import (
	"net/url"
	"time"

	"github.com/bamarler/flaZK/internal/eligibility"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// SessionStatus is the lifecycle state of a verification session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transition.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DeliveryMode is how the completion result reaches the client context.
// PostMessage targets the opener window at the callback origin; Redirect
// navigates the verification context to the callback URL. Both payloads are
// always computed so the widget can fall back when no opener handle exists.
type DeliveryMode string

const (
	DeliveryPostMessage DeliveryMode = "post_message"
	DeliveryRedirect    DeliveryMode = "redirect"
)

// ParseDeliveryMode validates a delivery mode string; empty defaults to
// post_message.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch DeliveryMode(s) {
	case "":
		return DeliveryPostMessage, nil
	case DeliveryPostMessage, DeliveryRedirect:
		return DeliveryMode(s), nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "unsupported delivery mode")
	}
}

// Session is a single client-initiated verification attempt.
//
// # Ownership Invariant
//
// Sessions are owned exclusively by the verification service; stores apply
// terminal transitions atomically and no other component mutates them.
// Requirements are fixed at creation and never re-derived.
type Session struct {
	ID           id.SessionID
	ClientID     id.ClientID
	ClientName   string
	CallbackURL  string
	Requirements eligibility.Requirements
	Status       SessionStatus
	DeliveryMode DeliveryMode

	// Proof is set only when the session completed successfully. It is the
	// opaque artifact token, never the underlying snapshot.
	Proof string

	// DeviceFingerprint is the coarse hash of the browser context that
	// submitted the completion. Audit-only.
	DeviceFingerprint string

	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
}

// NewSession creates a pending Session with domain invariant checks.
func NewSession(clientID id.ClientID, clientName, callbackURL string, reqs eligibility.Requirements, mode DeliveryMode, now time.Time, ttl time.Duration) (*Session, error) {
	if clientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "client ID required")
	}
	if callbackURL == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "callback URL required")
	}
	if _, err := ParseCallbackURL(callbackURL); err != nil {
		return nil, err
	}
	if err := reqs.Validate(); err != nil {
		return nil, err
	}
	if clientName == "" {
		clientName = clientID.String()
	}
	if mode == "" {
		mode = DeliveryPostMessage
	}
	return &Session{
		ID:           id.NewSessionID(),
		ClientID:     clientID,
		ClientName:   clientName,
		CallbackURL:  callbackURL,
		Requirements: reqs,
		Status:       StatusPending,
		DeliveryMode: mode,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}, nil
}

// IsExpired reports whether a pending session has aged out.
func (s *Session) IsExpired(now time.Time) bool {
	return s.Status == StatusPending && now.After(s.ExpiresAt)
}

// Outcome is the terminal transition applied to a pending session.
type Outcome struct {
	Status            SessionStatus
	Proof             string
	DeviceFingerprint string
	CompletedAt       time.Time
}

// ParseCallbackURL validates that a callback URL is absolute http(s) and
// returns its parsed form.
func ParseCallbackURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "callback URL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, dErrors.New(dErrors.CodeValidation, "callback URL must be absolute http(s)")
	}
	if u.Host == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "callback URL must include a host")
	}
	return u, nil
}

// CallbackOrigin returns the scheme://host origin of the stored callback URL.
// This is the only origin completion messages may target.
func (s *Session) CallbackOrigin() (string, error) {
	u, err := ParseCallbackURL(s.CallbackURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// CompletionMessage is the structured payload the verification context posts
// to the client context. The type tag is fixed so client pages can filter
// unrelated messages.
type CompletionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Success   bool   `json:"success"`
	Proof     string `json:"proof,omitempty"`
}

// CompletionMessageType is the fixed type tag of CompletionMessage.
const CompletionMessageType = "verification-complete"

// CompletionResult is everything the verification context needs to inform the
// client context, for either delivery variant.
type CompletionResult struct {
	RedirectURL  string
	Message      CompletionMessage
	TargetOrigin string
	DeliveryMode DeliveryMode
}
