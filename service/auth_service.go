// Package service holds the business logic between the HTTP transport and
// the ports: wallet authentication, session lifecycle and claim
// authorization.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// AuthResult is what a successful wallet authentication yields.
type AuthResult struct {
	IsNewUser bool
	Token     string
	User      *core.User
	ExpiresAt time.Time
}

// AuthService handles wallet authentication and session lifecycle.
type AuthService struct {
	nonces    ports.NonceStore
	users     ports.UserStore
	sessions  ports.SessionStore
	tokenizer ports.SessionTokenizer
	verifier  ports.SignatureVerifier
	eventPub  ports.EventPublisher
	log       *slog.Logger

	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates the authentication service. sessionTTL bounds
// issued sessions; the default deployment uses 7 days.
func NewAuthService(
	nonces ports.NonceStore,
	users ports.UserStore,
	sessions ports.SessionStore,
	tokenizer ports.SessionTokenizer,
	verifier ports.SignatureVerifier,
	eventPub ports.EventPublisher,
	log *slog.Logger,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		nonces:     nonces,
		users:      users,
		sessions:   sessions,
		tokenizer:  tokenizer,
		verifier:   verifier,
		eventPub:   eventPub,
		log:        log,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Nonce issues a fresh single-use login nonce.
func (s *AuthService) Nonce(ctx context.Context) (*core.Nonce, error) {
	return s.nonces.Issue(ctx)
}

// Verify authenticates a wallet: the signed message must embed the supplied
// nonce, the signature must verify for the claimed address, and the nonce is
// spent exactly once. On success the user row is created or touched and a
// session is issued.
func (s *AuthService) Verify(ctx context.Context, message, signature, address, nonce string) (*AuthResult, error) {
	if nonce == "" || !strings.Contains(message, nonce) {
		return nil, core.ErrNonceMismatch
	}

	if err := s.verifier.Verify(ctx, address, message, signature); err != nil {
		return nil, err
	}

	// Spent only after the signature held: a failed attempt must not burn
	// the nonce for the client's retry, and the conditional update in the
	// store settles concurrent spends of the same value.
	if err := s.nonces.Consume(ctx, nonce); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	wallet := core.NormalizeAddress(address)

	user, isNewUser, err := s.upsertUser(ctx, wallet, now)
	if err != nil {
		return nil, err
	}

	token, session, err := s.issueSession(ctx, user, now)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishLogin(ctx, user.ID, user.WalletAddress, isNewUser); err != nil {
		// The session is already issued; event delivery is best-effort.
		s.log.WarnContext(ctx, "failed to publish login event", "error", err, "user_id", user.ID)
	}

	return &AuthResult{
		IsNewUser: isNewUser,
		Token:     token,
		User:      user,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// ValidateToken runs the two independent session checks: the token must
// verify cryptographically AND hash to a live server-side session row. The
// second check is what makes revocation effective before natural expiry.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*core.Session, error) {
	if _, err := s.tokenizer.Parse(token); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByTokenHash(ctx, s.tokenizer.Hash(token))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrSessionExpired
		}
		return nil, err
	}

	now := s.now().UTC()
	if !session.Valid(now) {
		return nil, core.ErrSessionExpired
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		// Bookkeeping only; the session already passed both checks.
		s.log.WarnContext(ctx, "failed to touch session", "error", err, "session_id", session.ID)
	}

	return session, nil
}

// Logout revokes the session behind the presented token. Revocation is
// one-way and idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokenizer.Parse(token)
	if err != nil {
		return err
	}

	if err := s.sessions.Revoke(ctx, s.tokenizer.Hash(token)); err != nil {
		return err
	}

	if err := s.eventPub.PublishLogout(ctx, claims.UserID, claims.WalletAddress); err != nil {
		s.log.WarnContext(ctx, "failed to publish logout event", "error", err, "user_id", claims.UserID)
	}

	return nil
}

// LogoutAll revokes every session of the user, not only the presented one.
func (s *AuthService) LogoutAll(ctx context.Context, session *core.Session) error {
	if err := s.sessions.RevokeAllForUser(ctx, session.UserID); err != nil {
		return err
	}

	if err := s.eventPub.PublishLogout(ctx, session.UserID, session.WalletAddress); err != nil {
		s.log.WarnContext(ctx, "failed to publish logout event", "error", err, "user_id", session.UserID)
	}

	return nil
}

// User loads the identity behind a validated session.
func (s *AuthService) User(ctx context.Context, session *core.Session) (*core.User, error) {
	return s.users.GetByID(ctx, session.UserID)
}

func (s *AuthService) upsertUser(ctx context.Context, wallet string, now time.Time) (*core.User, bool, error) {
	user, err := s.users.GetByWallet(ctx, wallet)
	switch {
	case err == nil:
		if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
			return nil, false, err
		}
		user.LastLoginAt = now
		return user, false, nil

	case errors.Is(err, core.ErrNotFound):
		user = &core.User{
			ID:              uuid.New(),
			WalletAddress:   wallet,
			VerificationTag: core.VerificationTagSIWE,
			CreatedAt:       now,
			LastLoginAt:     now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, false, err
		}
		return user, true, nil

	default:
		return nil, false, err
	}
}

func (s *AuthService) issueSession(ctx context.Context, user *core.User, now time.Time) (string, *core.Session, error) {
	expiresAt := now.Add(s.sessionTTL)

	token, err := s.tokenizer.Issue(core.SessionClaims{
		UserID:        user.ID,
		WalletAddress: user.WalletAddress,
		IssuedAt:      now,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		return "", nil, err
	}

	session := &core.Session{
		ID:            uuid.New(),
		UserID:        user.ID,
		TokenHash:     s.tokenizer.Hash(token),
		WalletAddress: user.WalletAddress,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		CreatedAt:     now,
		LastUsedAt:    now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, err
	}

	return token, session, nil
}
