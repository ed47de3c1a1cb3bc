package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a wallet-backed identity. A user row is created on the first
// successful authentication for a wallet address and its last-login time is
// updated on every subsequent one. The wallet address is the natural
// external key.
type User struct {
	ID              uuid.UUID `json:"id"`
	WalletAddress   string    `json:"walletAddress"` // lowercase 0x-hex, unique
	VerificationTag string    `json:"verificationTag"`
	CreatedAt       time.Time `json:"createdAt"`
	LastLoginAt     time.Time `json:"lastLoginAt"`
}

// VerificationTagSIWE marks identities verified through the sign-in-with-
// Ethereum flow. Other tags may be attached by out-of-band verification.
const VerificationTagSIWE = "siwe"

// NormalizeAddress lowercases a wallet address so the same wallet always
// maps to the same identity row regardless of checksum casing.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
