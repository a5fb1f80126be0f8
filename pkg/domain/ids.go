// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where SessionID is expected.
type (
	SessionID  uuid.UUID
	UserID     uuid.UUID
	DocumentID uuid.UUID
)

// ClientID identifies a registered API client. Clients choose their own slugs
// (e.g. "acme-car-rental"), so this is a string identifier rather than a UUID.
type ClientID string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	id, err := parseUUID(s, "document ID")
	return DocumentID(id), err
}

func ParseClientID(s string) (ClientID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "client ID cannot be empty")
	}
	return ClientID(s), nil
}

// New functions - generate fresh identifiers.

func NewSessionID() SessionID   { return SessionID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// String methods - for logging and URL building.

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }
func (id ClientID) String() string   { return string(id) }

// IsNil checks - used for service-layer validation.

func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool   { return id == "" }

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
