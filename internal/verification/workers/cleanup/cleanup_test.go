package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExpirer struct {
	count int
	err   error
	calls int
}

func (s *stubExpirer) ExpireSessions(context.Context) (int, error) {
	s.calls++
	return s.count, s.err
}

type stubCodeStore struct {
	count int
}

func (s *stubCodeStore) DeleteExpiredCodes(context.Context, time.Time) (int, error) {
	return s.count, nil
}

func TestRunOnce(t *testing.T) {
	expirer := &stubExpirer{count: 3}
	svc, err := New(expirer, WithCodeStore(&stubCodeStore{count: 2}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExpiredSessions)
	assert.Equal(t, 2, res.DeletedCodes)
	assert.Equal(t, 1, expirer.calls)
}

func TestRunOncePropagatesError(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("store down")}
	svc, err := New(expirer)
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestNewRequiresExpirer(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	expirer := &stubExpirer{}
	svc, err := New(expirer, WithInterval(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = svc.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, expirer.calls, 0)
}
