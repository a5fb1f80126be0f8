package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/bamarler/flaZK/internal/audit"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// TokenIssuer mints the bearer credential returned after phone verification.
type TokenIssuer interface {
	Issue(userID id.UserID, phone string, now time.Time) (string, error)
}

type Option func(*Service)

const (
	defaultCodeTTL     = 5 * time.Minute
	defaultMaxAttempts = 5
	codeLength         = 6
)

// Service is the identity collaborator: phone-code challenges resolving to a
// stable user and a bearer token. User IDs survive across verifications so
// previously analyzed documents stay attached.
type Service struct {
	codes       CodeStore
	users       UserStore
	sender      Sender
	tokens      TokenIssuer
	auditor     *audit.Publisher
	logger      *slog.Logger
	codeTTL     time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewService(codes CodeStore, users UserStore, sender Sender, tokens TokenIssuer, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		codes:       codes,
		users:       users,
		sender:      sender,
		tokens:      tokens,
		logger:      logger,
		codeTTL:     defaultCodeTTL,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithAuditor sets the audit publisher.
func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithCodeTTL configures how long an issued code stays redeemable.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// SendCode issues a fresh challenge for the phone and hands it to the sender
// asynchronously. The call returns once the challenge is persisted; SMS
// delivery is accept-and-return-pending, never a synchronous wait.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if !ValidPhone(phone) {
		return dErrors.New(dErrors.CodeValidation, "phone number is invalid")
	}

	code, err := generateCode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not generate verification code")
	}

	now := s.now()
	challenge := &VerificationCode{
		Phone:     phone,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.codes.Save(ctx, challenge); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not persist verification code")
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.sender.Send(sendCtx, phone, code); err != nil {
			s.logger.WarnContext(sendCtx, "verification code delivery failed",
				"phone", redactPhone(phone),
				"error", err,
			)
		}
	}()

	s.emitAudit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionCodeIssued,
		Reason:    "phone " + redactPhone(phone),
	})
	return nil
}

// Credential is the outcome of a successful phone verification.
type Credential struct {
	UserID id.UserID
	Token  string
}

// VerifyCode redeems a challenge. Mismatches, expiry, and exhausted attempts
// all surface as the same unauthorized error so callers cannot probe.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (*Credential, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if !ValidPhone(phone) || code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone and code are required")
	}

	challenge, err := s.codes.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not read verification code")
	}

	now := s.now()
	if challenge.IsExpired(now) || challenge.Attempts >= s.maxAttempts {
		_ = s.codes.Delete(ctx, phone) //nolint:errcheck // stale challenge cleanup
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification code")
	}
	if challenge.Code != code {
		if _, err := s.codes.IncrementAttempts(ctx, phone); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "could not record failed attempt", "error", err)
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification code")
	}

	if err := s.codes.Delete(ctx, phone); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not consume verification code")
	}

	user, err := s.findOrCreateUser(ctx, phone, now)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, phone, now)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionCredentialIssued,
		Reason:    "phone " + redactPhone(phone),
	})
	return &Credential{UserID: user.ID, Token: token}, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}

func (s *Service) findOrCreateUser(ctx context.Context, phone string, now time.Time) (*User, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not read user")
	}

	user = &User{ID: id.NewUserID(), Phone: phone, CreatedAt: now}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist user")
	}
	return user, nil
}

func generateCode() (string, error) {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
