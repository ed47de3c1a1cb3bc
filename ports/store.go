package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sproutgame/sprout-server/core"
)

// NonceStore issues and consumes single-use login nonces. Implementations
// must be shared and durable: the backend runs as multiple stateless
// instances, so an in-process map silently breaks the moment a second
// instance serves the verify call.
type NonceStore interface {
	// Issue generates, persists and returns a fresh nonce.
	Issue(ctx context.Context) (*core.Nonce, error)

	// Consume atomically marks the nonce used. It fails if the value is
	// unknown, already consumed, or past expiry; of two concurrent calls
	// with the same value at most one succeeds.
	Consume(ctx context.Context, value string) error
}

// UserStore persists wallet-backed identities.
type UserStore interface {
	// GetByWallet looks up a user by lowercase wallet address.
	GetByWallet(ctx context.Context, walletAddress string) (*core.User, error)

	// GetByID looks up a user by id.
	GetByID(ctx context.Context, id uuid.UUID) (*core.User, error)

	// Create inserts a new user row.
	Create(ctx context.Context, user *core.User) error

	// TouchLogin updates the user's last-login time.
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SessionStore persists server-side session records, keyed by the one-way
// hash of the bearer token.
type SessionStore interface {
	// Create inserts a new session row.
	Create(ctx context.Context, session *core.Session) error

	// GetByTokenHash returns the session stored under the hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*core.Session, error)

	// Touch updates the session's last-used time.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// Revoke clears is_active for the session with the given token hash.
	// Idempotent: revoking an already-revoked session is not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllForUser clears is_active on every session of the user.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// ClaimStore is the non-authoritative audit ledger of claim activity. The
// chain remains the source of truth for whether funds actually moved.
type ClaimStore interface {
	// Insert appends an audit row.
	Insert(ctx context.Context, claim *core.ClaimTransaction) error

	// ExistsForDay reports whether the user already has a claim of the given
	// kind on the UTC calendar day containing at.
	ExistsForDay(ctx context.Context, userID uuid.UUID, kind core.ClaimKind, at time.Time) (bool, error)

	// LatestAuthorized returns the user's most recent authorized-but-not-
	// submitted row of the given kind, or core.ErrNotFound.
	LatestAuthorized(ctx context.Context, userID uuid.UUID, kind core.ClaimKind) (*core.ClaimTransaction, error)

	// AttachTx records the reported transaction hash on an authorized row
	// and moves it to the submitted status.
	AttachTx(ctx context.Context, id uuid.UUID, txHash string) error

	// ListByUser returns the user's audit rows, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]core.ClaimTransaction, error)
}
