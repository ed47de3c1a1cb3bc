package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NonceByteLength is the entropy of an issued nonce. Hex encoding doubles it
// on the wire.
const NonceByteLength = 16

// Nonce is a single-use login challenge value. It is issued to a client,
// embedded in the message the wallet signs, and consumed exactly once during
// signature verification.
type Nonce struct {
	Value      string     // Hex-encoded random value (16 bytes, 32 hex chars)
	IssuedAt   time.Time  // When the nonce was created
	ExpiresAt  time.Time  // When the nonce stops being consumable
	ConsumedAt *time.Time // Set exactly once, on successful verification
}

// NewNonce generates a cryptographically random nonce valid for ttl from
// now. Stores persist it; they do not generate values themselves.
func NewNonce(now time.Time, ttl time.Duration) (*Nonce, error) {
	buf := make([]byte, NonceByteLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return &Nonce{
		Value:     hex.EncodeToString(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Consumable reports whether the nonce can still be consumed at the given
// time. Stores enforce the same rule atomically; this is for callers that
// already hold a copy.
func (n *Nonce) Consumable(at time.Time) bool {
	return n.ConsumedAt == nil && at.Before(n.ExpiresAt)
}
