package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Audit event actions.
const (
	ActionSessionCreated   = "session_created"
	ActionSessionCompleted = "session_completed"
	ActionSessionFailed    = "session_failed"
	ActionSessionExpired   = "session_expired"
	ActionCodeIssued       = "verification_code_issued"
	ActionCredentialIssued = "credential_issued"
)

// Audit event decisions.
const (
	DecisionRequirementsMet    = "requirements_met"
	DecisionRequirementsNotMet = "requirements_not_met"
)
