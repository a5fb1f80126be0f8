package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// CodeStore persists pending phone challenges.
type CodeStore interface {
	Save(ctx context.Context, code *VerificationCode) error
	FindByPhone(ctx context.Context, phone string) (*VerificationCode, error)
	Delete(ctx context.Context, phone string) error
	IncrementAttempts(ctx context.Context, phone string) (int, error)
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int, error)
}

// UserStore persists phone-verified users.
type UserStore interface {
	FindByPhone(ctx context.Context, phone string) (*User, error)
	Save(ctx context.Context, user *User) error
}

// InMemoryCodeStore stores pending challenges in memory.
type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]*VerificationCode
}

// NewInMemoryCodeStore constructs an empty code store.
func NewInMemoryCodeStore() *InMemoryCodeStore {
	return &InMemoryCodeStore{codes: make(map[string]*VerificationCode)}
}

func (s *InMemoryCodeStore) Save(_ context.Context, code *VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[code.Phone] = &cp
	return nil
}

func (s *InMemoryCodeStore) FindByPhone(_ context.Context, phone string) (*VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[phone]
	if !ok {
		return nil, fmt.Errorf("code not found: %w", sentinel.ErrNotFound)
	}
	cp := *code
	return &cp, nil
}

func (s *InMemoryCodeStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}

// DeleteExpiredCodes removes challenges past their expiry as of the given time.
func (s *InMemoryCodeStore) DeleteExpiredCodes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for phone, code := range s.codes {
		if code.IsExpired(now) {
			delete(s.codes, phone)
			deleted++
		}
	}
	return deleted, nil
}

// IncrementAttempts bumps the attempt counter for a phone's active challenge.
func (s *InMemoryCodeStore) IncrementAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[phone]
	if !ok {
		return 0, fmt.Errorf("code not found: %w", sentinel.ErrNotFound)
	}
	code.Attempts++
	return code.Attempts, nil
}

// InMemoryUserStore stores phone-verified users in memory.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryUserStore constructs an empty user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*User)}
}

func (s *InMemoryUserStore) FindByPhone(_ context.Context, phone string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[phone]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	cp := *user
	return &cp, nil
}

func (s *InMemoryUserStore) Save(_ context.Context, user *User) error {
	if user == nil || user.ID == (id.UserID{}) {
		return fmt.Errorf("user with ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.Phone] = &cp
	return nil
}
