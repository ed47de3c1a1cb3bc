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

// PostgresUserStore persists wallet identities in the users table.
type PostgresUserStore struct {
	db DBTX
}

// NewPostgresUserStore creates a user store.
func NewPostgresUserStore(db DBTX) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

var _ ports.UserStore = (*PostgresUserStore)(nil)

func (s *PostgresUserStore) GetByWallet(ctx context.Context, walletAddress string) (*core.User, error) {
	user := &core.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, verification_tag, created_at, last_login_at
		 FROM users WHERE wallet_address = $1`,
		core.NormalizeAddress(walletAddress)).
		Scan(&user.ID, &user.WalletAddress, &user.VerificationTag, &user.CreatedAt, &user.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user by wallet: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	user := &core.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, verification_tag, created_at, last_login_at
		 FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.WalletAddress, &user.VerificationTag, &user.CreatedAt, &user.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, user *core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, wallet_address, verification_tag, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.WalletAddress, user.VerificationTag, user.CreatedAt, user.LastLoginAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at.UTC()); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
