package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bamarler/flaZK/internal/verification/models"
	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested session does not exist
// - Return ErrInvalidState when a terminal transition races a prior one
// - Return wrapped errors with context for infrastructure failures
// InMemorySessionStore stores sessions in memory for tests/dev.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	cp := *session
	return &cp, nil
}

// CompletePending applies a terminal outcome if and only if the session is
// still pending and not past its deadline as of outcome.CompletedAt. The
// read-check-write runs under one lock so exactly one completion wins. An
// expired pending session reads as absent, matching what the cleanup sweep
// would have produced.
func (s *InMemorySessionStore) CompletePending(_ context.Context, sessionID id.SessionID, outcome models.Outcome) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if session.Status != models.StatusPending {
		return nil, fmt.Errorf("session already %s: %w", session.Status, sentinel.ErrInvalidState)
	}
	if session.IsExpired(outcome.CompletedAt) {
		return nil, fmt.Errorf("session expired: %w", sentinel.ErrNotFound)
	}

	session.Status = outcome.Status
	session.Proof = outcome.Proof
	session.DeviceFingerprint = outcome.DeviceFingerprint
	completedAt := outcome.CompletedAt
	session.CompletedAt = &completedAt

	cp := *session
	return &cp, nil
}

// DeleteExpired removes pending sessions whose ExpiresAt has passed and
// returns them so callers can emit expiry events. Terminal sessions are kept.
// The time parameter is injected for testability (no hidden time.Now() calls).
func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*models.Session
	for key, session := range s.sessions {
		if session.IsExpired(now) {
			cp := *session
			expired = append(expired, &cp)
			delete(s.sessions, key)
		}
	}
	return expired, nil
}

// Count returns the number of stored sessions. Used by tests and metrics.
func (s *InMemorySessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
