package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/verification/models"
	id "github.com/bamarler/flaZK/pkg/domain"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// PostgresStore persists verification sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed session store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	reqBytes, err := json.Marshal(session.Requirements)
	if err != nil {
		return fmt.Errorf("marshal session requirements: %w", err)
	}

	query := `
		INSERT INTO verification_sessions
			(id, client_id, client_name, callback_url, requirements, status,
			 delivery_mode, proof, device_fingerprint, created_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer().ExecContext(ctx, query,
		uuid.UUID(session.ID),
		session.ClientID.String(),
		session.ClientName,
		session.CallbackURL,
		reqBytes,
		string(session.Status),
		string(session.DeliveryMode),
		session.Proof,
		session.DeviceFingerprint,
		session.CreatedAt,
		session.ExpiresAt,
		nullTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	query := `
		SELECT id, client_id, client_name, callback_url, requirements, status,
		       delivery_mode, proof, device_fingerprint, created_at, expires_at, completed_at
		FROM verification_sessions
		WHERE id = $1
	`
	session, err := scanSession(s.execer().QueryRowContext(ctx, query, uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return session, nil
}

// CompletePending applies a terminal outcome with a conditional UPDATE so that
// exactly one completion wins even across replicas. The update also requires
// the deadline to be in the future as of outcome.CompletedAt: an aged-out
// pending row completes nowhere, whether or not the cleanup sweep got to it
// yet. No row matched means absent, expired, or already terminal; a follow-up
// read tells which.
func (s *PostgresStore) CompletePending(ctx context.Context, sessionID id.SessionID, outcome models.Outcome) (*models.Session, error) {
	query := `
		UPDATE verification_sessions
		SET status = $2, proof = $3, device_fingerprint = $4, completed_at = $5
		WHERE id = $1 AND status = $6 AND expires_at > $5
		RETURNING id, client_id, client_name, callback_url, requirements, status,
		          delivery_mode, proof, device_fingerprint, created_at, expires_at, completed_at
	`
	session, err := scanSession(s.execer().QueryRowContext(ctx, query,
		uuid.UUID(sessionID),
		string(outcome.Status),
		outcome.Proof,
		outcome.DeviceFingerprint,
		outcome.CompletedAt,
		string(models.StatusPending),
	))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	existing, findErr := s.FindByID(ctx, sessionID)
	if findErr != nil {
		return nil, findErr
	}
	if existing.Status == models.StatusPending {
		return nil, fmt.Errorf("session expired: %w", sentinel.ErrNotFound)
	}
	return nil, fmt.Errorf("session already %s: %w", existing.Status, sentinel.ErrInvalidState)
}

// DeleteExpired removes pending sessions past their expiry and returns them.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) ([]*models.Session, error) {
	query := `
		DELETE FROM verification_sessions
		WHERE status = $1 AND expires_at < $2
		RETURNING id, client_id, client_name, callback_url, requirements, status,
		          delivery_mode, proof, device_fingerprint, created_at, expires_at, completed_at
	`
	rows, err := s.execer().QueryContext(ctx, query, string(models.StatusPending), now)
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor close

	var expired []*models.Session
	for rows.Next() {
		session, err := scanSessionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		expired = append(expired, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return expired, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*models.Session, error) {
	return scanSessionRows(row)
}

func scanSessionRows(row rowScanner) (*models.Session, error) {
	var (
		session     models.Session
		sessionID   uuid.UUID
		clientID    string
		reqBytes    []byte
		status      string
		mode        string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&sessionID,
		&clientID,
		&session.ClientName,
		&session.CallbackURL,
		&reqBytes,
		&status,
		&mode,
		&session.Proof,
		&session.DeviceFingerprint,
		&session.CreatedAt,
		&session.ExpiresAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	var reqs eligibility.Requirements
	if len(reqBytes) > 0 {
		if err := json.Unmarshal(reqBytes, &reqs); err != nil {
			return nil, fmt.Errorf("unmarshal session requirements: %w", err)
		}
	}

	session.ID = id.SessionID(sessionID)
	session.ClientID = id.ClientID(clientID)
	session.Requirements = reqs
	session.Status = models.SessionStatus(status)
	session.DeliveryMode = models.DeliveryMode(mode)
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	return &session, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
