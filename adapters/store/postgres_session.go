package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// PostgresSessionStore persists session records in the sessions table,
// keyed by token hash.
type PostgresSessionStore struct {
	db DBTX
}

// NewPostgresSessionStore creates a session store.
func NewPostgresSessionStore(db DBTX) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

var _ ports.SessionStore = (*PostgresSessionStore)(nil)

func (s *PostgresSessionStore) Create(ctx context.Context, session *core.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, wallet_address, expires_at, is_active, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.UserID, session.TokenHash, session.WalletAddress,
		session.ExpiresAt, session.IsActive, session.CreatedAt, session.LastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	session := &core.Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, wallet_address, expires_at, is_active, created_at, last_used_at
		 FROM sessions WHERE token_hash = $1`, tokenHash).
		Scan(&session.ID, &session.UserID, &session.TokenHash, &session.WalletAddress,
			&session.ExpiresAt, &session.IsActive, &session.CreatedAt, &session.LastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (s *PostgresSessionStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at.UTC()); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Revoke clears is_active. Revocation is one-way: nothing ever sets the flag
// back, and revoking an already-revoked session is a no-op, not an error.
func (s *PostgresSessionStore) Revoke(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}
