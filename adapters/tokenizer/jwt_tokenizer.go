package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// AudienceSession tags issued session tokens so a token minted for any other
// purpose can never pass validation here.
const AudienceSession = "sprout:session"

// MinSecretLength is the smallest HMAC secret accepted, in bytes.
const MinSecretLength = 32

// JWTTokenizer implements ports.SessionTokenizer with HS256-signed JWTs.
type JWTTokenizer struct {
	secret []byte
}

// NewJWTTokenizer creates a session tokenizer from the server-held secret.
func NewJWTTokenizer(secret []byte) (*JWTTokenizer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	return &JWTTokenizer{secret: secret}, nil
}

var _ ports.SessionTokenizer = (*JWTTokenizer)(nil)

// Issue signs a bearer token embedding the session claims.
func (j *JWTTokenizer) Issue(claims core.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.WalletAddress,
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		UserID:        claims.UserID,
		WalletAddress: claims.WalletAddress,
	})

	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Parse verifies the token's signature, expiry and audience and returns its
// claims. An expired token maps to core.ErrSessionExpired; any other failure
// maps to core.ErrUnauthorized. This is the cheap first check — the caller
// still has to find a live session row under Hash(token).
func (j *JWTTokenizer) Parse(tokenStr string) (*core.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithAudience(AudienceSession))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.WrapError(core.ErrSessionExpired, err)
		}
		return nil, core.WrapError(core.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*SessionTokenClaims)
	if !ok || !token.Valid {
		return nil, core.ErrUnauthorized
	}

	return &core.SessionClaims{
		UserID:        claims.UserID,
		WalletAddress: claims.WalletAddress,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

// Hash returns the hex-encoded SHA-256 of the token. Sessions are stored
// under this hash, never under the raw token.
func (j *JWTTokenizer) Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
