// Package client manages registered API clients and API-key resolution.
//
// A client is the relying party that requests verifications (e.g. a car-rental
// site). Clients authenticate with an API key; the key is stored as a bcrypt
// hash and never in plaintext.
package client

import (
	"time"

	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// Client is a registered relying party.
type Client struct {
	ID         id.ClientID
	Name       string
	APIKeyHash string
	Active     bool
	CreatedAt  time.Time
}

// NewClient creates a Client with invariant checks.
func NewClient(clientID id.ClientID, name, apiKeyHash string, now time.Time) (*Client, error) {
	if clientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client ID required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name required")
	}
	if apiKeyHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "API key hash required")
	}
	return &Client{
		ID:         clientID,
		Name:       name,
		APIKeyHash: apiKeyHash,
		Active:     true,
		CreatedAt:  now,
	}, nil
}
