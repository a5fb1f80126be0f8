package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/verification/models"
	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix  = "verification:session:"
	defaultSessionTTL = 30 * time.Minute
)

// sessionJSON is the Redis wire form of a session. Timestamps are UnixNano
// so the encoding is stable across timezones and redis-cli inspection.
type sessionJSON struct {
	ID                string                   `json:"id"`
	ClientID          string                   `json:"client_id"`
	ClientName        string                   `json:"client_name"`
	CallbackURL       string                   `json:"callback_url"`
	Requirements      eligibility.Requirements `json:"requirements"`
	Status            string                   `json:"status"`
	DeliveryMode      string                   `json:"delivery_mode"`
	Proof             string                   `json:"proof,omitempty"`
	DeviceFingerprint string                   `json:"device_fingerprint,omitempty"`
	CreatedAt         int64                    `json:"created_at"`
	ExpiresAt         int64                    `json:"expires_at"`
	CompletedAt       *int64                   `json:"completed_at,omitempty"`
}

func sessionToJSON(s *models.Session) *sessionJSON {
	j := &sessionJSON{
		ID:                uuid.UUID(s.ID).String(),
		ClientID:          s.ClientID.String(),
		ClientName:        s.ClientName,
		CallbackURL:       s.CallbackURL,
		Requirements:      s.Requirements,
		Status:            string(s.Status),
		DeliveryMode:      string(s.DeliveryMode),
		Proof:             s.Proof,
		DeviceFingerprint: s.DeviceFingerprint,
		CreatedAt:         s.CreatedAt.UnixNano(),
		ExpiresAt:         s.ExpiresAt.UnixNano(),
	}
	if s.CompletedAt != nil {
		n := s.CompletedAt.UnixNano()
		j.CompletedAt = &n
	}
	return j
}

func sessionFromJSON(j *sessionJSON) (*models.Session, error) {
	sessionID, err := uuid.Parse(j.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	s := &models.Session{
		ID:                id.SessionID(sessionID),
		ClientID:          id.ClientID(j.ClientID),
		ClientName:        j.ClientName,
		CallbackURL:       j.CallbackURL,
		Requirements:      j.Requirements,
		Status:            models.SessionStatus(j.Status),
		DeliveryMode:      models.DeliveryMode(j.DeliveryMode),
		Proof:             j.Proof,
		DeviceFingerprint: j.DeviceFingerprint,
		CreatedAt:         time.Unix(0, j.CreatedAt),
		ExpiresAt:         time.Unix(0, j.ExpiresAt),
	}
	if j.CompletedAt != nil {
		t := time.Unix(0, *j.CompletedAt)
		s.CompletedAt = &t
	}
	return s, nil
}

// RedisStore persists sessions in Redis.
// This is the production-recommended implementation for distributed
// deployments where multiple instances share session state. Pending sessions
// expire natively via key TTL, so DeleteExpired is a no-op here.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + uuid.UUID(sessionID).String()
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}

	data, err := json.Marshal(sessionToJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	ok, err := s.client.SetNX(ctx, s.sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}

	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sessionFromJSON(&j)
}

// CompletePending applies a terminal outcome under optimistic lock. WATCH on
// the session key makes the pending check and the overwrite atomic, so exactly
// one completion wins.
func (s *RedisStore) CompletePending(ctx context.Context, sessionID id.SessionID, outcome models.Outcome) (*models.Session, error) {
	key := s.sessionKey(sessionID)
	var result *models.Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get session for complete: %w", err)
		}

		var j sessionJSON
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		session, err := sessionFromJSON(&j)
		if err != nil {
			return err
		}

		if session.Status != models.StatusPending {
			return fmt.Errorf("session already %s: %w", session.Status, sentinel.ErrInvalidState)
		}
		// The native key TTL can lag the deadline; a pending session past
		// ExpiresAt reads as absent even when the key still holds.
		if session.IsExpired(outcome.CompletedAt) {
			return fmt.Errorf("session expired: %w", sentinel.ErrNotFound)
		}

		session.Status = outcome.Status
		session.Proof = outcome.Proof
		session.DeviceFingerprint = outcome.DeviceFingerprint
		completedAt := outcome.CompletedAt
		session.CompletedAt = &completedAt

		newData, err := json.Marshal(sessionToJSON(session))
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		// Completed sessions stay readable for status polls for the
		// remaining key TTL, then fall out on their own.
		ttl := getOrComputeTTL(ctx, tx, key, session)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = session
		return nil
	}, key)

	if err != nil {
		return nil, completeWatchErr(err)
	}
	return result, nil
}

// completeWatchErr maps a lost WATCH race onto the invalid-state sentinel. A
// concurrent completion winning the race is the same condition as finding the
// session already terminal, not a backend fault.
func completeWatchErr(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session already completed concurrently: %w", sentinel.ErrInvalidState)
	}
	return err
}

// DeleteExpired is a no-op: Redis expires pending session keys natively.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) ([]*models.Session, error) {
	return nil, nil
}

// getOrComputeTTL retrieves the existing TTL for a key, falling back to
// computing from session expiry or using the default TTL.
func getOrComputeTTL(ctx context.Context, getter redis.Cmdable, key string, session *models.Session) time.Duration {
	ttl, err := getter.TTL(ctx, key).Result()
	if err == nil && ttl > 0 {
		return ttl
	}
	if remaining := time.Until(session.ExpiresAt); remaining > 0 {
		return remaining
	}
	return defaultSessionTTL
}
