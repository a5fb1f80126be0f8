package documents

import (
	"time"

	"github.com/bamarler/flaZK/internal/eligibility"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// Document is a user-uploaded identity document reduced to its extracted
// facts. Raw document content never leaves the scanning boundary.
type Document struct {
	ID         id.DocumentID
	UserID     id.UserID
	Name       string
	Facts      eligibility.DocumentFacts
	UploadedAt time.Time
}

// NewDocument creates a Document with invariant checks.
func NewDocument(userID id.UserID, name string, facts eligibility.DocumentFacts, now time.Time) (*Document, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	if err := facts.Validate(); err != nil {
		return nil, err
	}
	return &Document{
		ID:         id.NewDocumentID(),
		UserID:     userID,
		Name:       name,
		Facts:      facts,
		UploadedAt: now,
	}, nil
}
