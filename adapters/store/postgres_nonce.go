package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// PostgresNonceStore persists login nonces in the auth_nonces table. The
// consume step is a single conditional UPDATE, so the only safety-critical
// race on the backend — two requests spending one nonce — is settled by the
// database, not by application code.
type PostgresNonceStore struct {
	db  DBTX
	ttl time.Duration
	now func() time.Time
}

// NewPostgresNonceStore creates a nonce store issuing nonces valid for ttl.
func NewPostgresNonceStore(db DBTX, ttl time.Duration) *PostgresNonceStore {
	return &PostgresNonceStore{db: db, ttl: ttl, now: time.Now}
}

var _ ports.NonceStore = (*PostgresNonceStore)(nil)

// Issue generates, persists and returns a fresh nonce. Expired rows are
// swept opportunistically first; that sweep is hygiene, not safety, so its
// failure does not block issuance.
func (s *PostgresNonceStore) Issue(ctx context.Context) (*core.Nonce, error) {
	now := s.now().UTC()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_nonces WHERE expires_at < $1`, now); err != nil {
		return nil, fmt.Errorf("failed to sweep expired nonces: %w", err)
	}

	nonce, err := core.NewNonce(now, s.ttl)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_nonces (nonce, issued_at, expires_at) VALUES ($1, $2, $3)`,
		nonce.Value, nonce.IssuedAt, nonce.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to persist nonce: %w", err)
	}

	return nonce, nil
}

// Consume atomically marks the nonce used. The WHERE clause carries the full
// validity predicate, so of two concurrent calls at most one sees a row to
// update.
func (s *PostgresNonceStore) Consume(ctx context.Context, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auth_nonces SET consumed_at = $2
		 WHERE nonce = $1 AND consumed_at IS NULL AND expires_at > $2`,
		value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read consume result: %w", err)
	}
	if affected == 0 {
		return core.ErrInvalidNonce
	}
	return nil
}
