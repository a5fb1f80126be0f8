package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionExpirer removes pending verification sessions past their deadline
// and reports how many were removed.
type SessionExpirer interface {
	ExpireSessions(ctx context.Context) (int, error)
}

// CodeStore exposes cleanup for expired phone verification codes.
type CodeStore interface {
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int, error)
}

// Result summarizes the deletions performed by a cleanup run.
type Result struct {
	ExpiredSessions int
	DeletedCodes    int
}

// Service periodically ages out abandoned verification state. Redis-backed
// deployments expire session keys natively; the run is then a no-op for
// sessions but still sweeps verification codes.
type Service struct {
	expirer   SessionExpirer
	codeStore CodeStore
	interval  time.Duration
	logger    *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the cleanup interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for cleanup errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCodeStore adds phone code sweeping to the run.
func WithCodeStore(store CodeStore) Option {
	return func(s *Service) {
		s.codeStore = store
	}
}

// New constructs a cleanup Service.
func New(expirer SessionExpirer, opts ...Option) (*Service, error) {
	if expirer == nil {
		return nil, fmt.Errorf("session expirer is required")
	}
	svc := &Service{
		expirer:  expirer,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if res, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "verification cleanup failed", "error", err)
			} else if res.ExpiredSessions > 0 || res.DeletedCodes > 0 {
				s.logger.InfoContext(ctx, "verification cleanup run",
					"expired_sessions", res.ExpiredSessions,
					"deleted_codes", res.DeletedCodes,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	expired, err := s.expirer.ExpireSessions(ctx)
	if err != nil {
		return res, fmt.Errorf("expire sessions: %w", err)
	}
	res.ExpiredSessions = expired

	if s.codeStore != nil {
		deleted, err := s.codeStore.DeleteExpiredCodes(ctx, time.Now())
		if err != nil {
			return res, fmt.Errorf("delete expired codes: %w", err)
		}
		res.DeletedCodes = deleted
	}

	return res, nil
}
