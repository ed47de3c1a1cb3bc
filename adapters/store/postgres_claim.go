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

// PostgresClaimStore persists the claim audit ledger. Amounts are stored as
// NUMERIC(78,0) — wide enough for any uint256 — and travel through Go as
// decimal strings.
type PostgresClaimStore struct {
	db DBTX
}

// NewPostgresClaimStore creates a claim ledger store.
func NewPostgresClaimStore(db DBTX) *PostgresClaimStore {
	return &PostgresClaimStore{db: db}
}

var _ ports.ClaimStore = (*PostgresClaimStore)(nil)

func (s *PostgresClaimStore) Insert(ctx context.Context, claim *core.ClaimTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claim_transactions (id, user_id, claim_kind, amount, tx_hash, status, created_at)
		 VALUES ($1, $2, $3, $4::numeric, NULLIF($5, ''), $6, $7)`,
		claim.ID, claim.UserID, string(claim.Kind), claim.Amount, claim.TxHash, claim.Status, claim.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert claim record: %w", err)
	}
	return nil
}

func (s *PostgresClaimStore) ExistsForDay(ctx context.Context, userID uuid.UUID, kind core.ClaimKind, at time.Time) (bool, error) {
	start, end := dayWindow(at)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM claim_transactions
		   WHERE user_id = $1 AND claim_kind = $2 AND created_at >= $3 AND created_at < $4
		 )`,
		userID, string(kind), start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check daily claim: %w", err)
	}
	return exists, nil
}

func (s *PostgresClaimStore) LatestAuthorized(ctx context.Context, userID uuid.UUID, kind core.ClaimKind) (*core.ClaimTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, claim_kind, amount::text, COALESCE(tx_hash, ''), status, created_at
		 FROM claim_transactions
		 WHERE user_id = $1 AND claim_kind = $2 AND status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		userID, string(kind), core.ClaimStatusAuthorized)

	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load authorized claim: %w", err)
	}
	return claim, nil
}

func (s *PostgresClaimStore) AttachTx(ctx context.Context, id uuid.UUID, txHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE claim_transactions SET tx_hash = $2, status = $3 WHERE id = $1`,
		id, txHash, core.ClaimStatusSubmitted)
	if err != nil {
		return fmt.Errorf("failed to attach transaction hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read attach result: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *PostgresClaimStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]core.ClaimTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, claim_kind, amount::text, COALESCE(tx_hash, ''), status, created_at
		 FROM claim_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list claim records: %w", err)
	}
	defer rows.Close()

	claims := []core.ClaimTransaction{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim record: %w", err)
		}
		claims = append(claims, *claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claim records: %w", err)
	}
	return claims, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(row scanner) (*core.ClaimTransaction, error) {
	claim := &core.ClaimTransaction{}
	var kind string
	if err := row.Scan(&claim.ID, &claim.UserID, &kind, &claim.Amount,
		&claim.TxHash, &claim.Status, &claim.CreatedAt); err != nil {
		return nil, err
	}
	claim.Kind = core.ClaimKind(kind)
	return claim, nil
}
