package ports

import "github.com/sproutgame/sprout-server/core"

// SessionTokenizer converts between session claims and signed bearer tokens.
type SessionTokenizer interface {
	// Issue signs a bearer token embedding the claims.
	Issue(claims core.SessionClaims) (string, error)

	// Parse verifies the token's signature and expiry and returns its
	// claims. This is the cheap first check; the server-side session row is
	// the second.
	Parse(token string) (*core.SessionClaims, error)

	// Hash returns the one-way hash under which the session row for this
	// token is stored. The raw token is never persisted.
	Hash(token string) string
}
