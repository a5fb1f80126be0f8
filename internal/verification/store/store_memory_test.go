package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/verification/models"
	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

type InMemorySessionStoreSuite struct {
	suite.Suite
	store *InMemorySessionStore
	now   time.Time
}

func (s *InMemorySessionStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func (s *InMemorySessionStoreSuite) newPending() *models.Session {
	ageMin := 21
	return &models.Session{
		ID:          id.NewSessionID(),
		ClientID:    id.ClientID("acme-car-rental"),
		ClientName:  "ACME Car Rentals",
		CallbackURL: "https://acme.example/verified",
		Requirements: eligibility.Requirements{
			AgeMin: &ageMin,
		},
		Status:       models.StatusPending,
		DeliveryMode: models.DeliveryPostMessage,
		CreatedAt:    s.now,
		ExpiresAt:    s.now.Add(30 * time.Minute),
	}
}

func (s *InMemorySessionStoreSuite) TestCreateAndFind() {
	session := s.newPending()

	err := s.store.Create(context.Background(), session)
	require.NoError(s.T(), err)

	found, err := s.store.FindByID(context.Background(), session.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), session, found)
}

func (s *InMemorySessionStoreSuite) TestCreateDuplicate() {
	session := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), session))

	err := s.store.Create(context.Background(), session)
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemorySessionStoreSuite) TestFindNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewSessionID())
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestFindReturnsCopy() {
	session := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), session))

	found, err := s.store.FindByID(context.Background(), session.ID)
	require.NoError(s.T(), err)
	found.Status = models.StatusFailed

	again, err := s.store.FindByID(context.Background(), session.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusPending, again.Status)
}

func (s *InMemorySessionStoreSuite) TestCompletePending() {
	session := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), session))

	completedAt := s.now.Add(5 * time.Minute)
	updated, err := s.store.CompletePending(context.Background(), session.ID, models.Outcome{
		Status:      models.StatusCompleted,
		Proof:       "0xdeadbeef",
		CompletedAt: completedAt,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusCompleted, updated.Status)
	assert.Equal(s.T(), "0xdeadbeef", updated.Proof)
	require.NotNil(s.T(), updated.CompletedAt)
	assert.Equal(s.T(), completedAt, *updated.CompletedAt)
}

func (s *InMemorySessionStoreSuite) TestCompleteSecondCallRejected() {
	session := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), session))

	_, err := s.store.CompletePending(context.Background(), session.ID, models.Outcome{
		Status:      models.StatusCompleted,
		Proof:       "0xdeadbeef",
		CompletedAt: s.now,
	})
	require.NoError(s.T(), err)

	_, err = s.store.CompletePending(context.Background(), session.ID, models.Outcome{
		Status:      models.StatusFailed,
		CompletedAt: s.now,
	})
	assert.ErrorIs(s.T(), err, sentinel.ErrInvalidState)

	// First outcome survives.
	found, err := s.store.FindByID(context.Background(), session.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusCompleted, found.Status)
	assert.Equal(s.T(), "0xdeadbeef", found.Proof)
}

func (s *InMemorySessionStoreSuite) TestCompleteExpiredPendingNotFound() {
	session := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), session))

	// 31 minutes into a 30 minute deadline.
	_, err := s.store.CompletePending(context.Background(), session.ID, models.Outcome{
		Status:      models.StatusFailed,
		CompletedAt: s.now.Add(31 * time.Minute),
	})
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)

	// The session is untouched and stays eligible for the cleanup sweep.
	found, err := s.store.FindByID(context.Background(), session.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusPending, found.Status)
	assert.Nil(s.T(), found.CompletedAt)
}

func (s *InMemorySessionStoreSuite) TestCompleteNotFound() {
	_, err := s.store.CompletePending(context.Background(), id.NewSessionID(), models.Outcome{
		Status:      models.StatusCompleted,
		CompletedAt: s.now,
	})
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestConcurrentCompleteSingleWinner() {
	session := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), session))

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.store.CompletePending(context.Background(), session.ID, models.Outcome{
				Status:      models.StatusCompleted,
				Proof:       "0xabc",
				CompletedAt: s.now,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(s.T(), err, sentinel.ErrInvalidState)
		}
	}
	assert.Equal(s.T(), 1, winners)
}

func (s *InMemorySessionStoreSuite) TestDeleteExpired() {
	fresh := s.newPending()
	require.NoError(s.T(), s.store.Create(context.Background(), fresh))

	stale := s.newPending()
	stale.ExpiresAt = s.now.Add(-time.Minute)
	require.NoError(s.T(), s.store.Create(context.Background(), stale))

	terminal := s.newPending()
	terminal.Status = models.StatusCompleted
	terminal.ExpiresAt = s.now.Add(-time.Hour)
	require.NoError(s.T(), s.store.Create(context.Background(), terminal))

	expired, err := s.store.DeleteExpired(context.Background(), s.now)
	require.NoError(s.T(), err)
	require.Len(s.T(), expired, 1)
	assert.Equal(s.T(), stale.ID, expired[0].ID)

	// Fresh pending and terminal sessions survive.
	_, err = s.store.FindByID(context.Background(), fresh.ID)
	assert.NoError(s.T(), err)
	_, err = s.store.FindByID(context.Background(), terminal.ID)
	assert.NoError(s.T(), err)
	_, err = s.store.FindByID(context.Background(), stale.ID)
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func TestInMemorySessionStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemorySessionStoreSuite))
}
