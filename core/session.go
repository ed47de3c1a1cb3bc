package core

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of an issued bearer token. The raw token
// is never persisted; TokenHash is a one-way hash of it, so a database leak
// alone does not yield usable credentials. A presented token is accepted only
// when it verifies cryptographically AND hashes to a live session row — two
// independent checks, so revocation works even while the token itself is
// still cryptographically valid.
type Session struct {
	ID            uuid.UUID // Unique session identifier
	UserID        uuid.UUID // Owning identity
	TokenHash     string    // One-way hash of the bearer token, unique
	WalletAddress string    // Denormalized for middleware convenience
	ExpiresAt     time.Time // When the session lapses regardless of activity
	IsActive      bool      // Cleared on logout/revocation, never set back
	CreatedAt     time.Time
	LastUsedAt    time.Time
}

// Valid reports whether the session record admits the given time. Expiry is
// a predicate, not a state transition; revocation is the one-way flip of
// IsActive.
func (s *Session) Valid(at time.Time) bool {
	return s.IsActive && at.Before(s.ExpiresAt)
}

// SessionClaims is the payload embedded in a session bearer token.
type SessionClaims struct {
	UserID        uuid.UUID
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}
