package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTokenClaims combines standard claims with the identity fields the
// middleware needs without a database roundtrip.
type SessionTokenClaims struct {
	jwt.RegisteredClaims
	UserID        uuid.UUID `json:"userId"`
	WalletAddress string    `json:"walletAddress"`
}
