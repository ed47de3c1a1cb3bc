package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// The memory stores implement the same contracts as their Postgres
// counterparts for tests and single-instance development. They are correct
// only for one process: the durable stores are the deployment default.

// MemoryNonceStore keeps nonces in a mutex-guarded map.
type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]*core.Nonce
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryNonceStore creates an in-memory nonce store issuing nonces valid
// for ttl.
func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{
		nonces: make(map[string]*core.Nonce),
		ttl:    ttl,
		now:    time.Now,
	}
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

func (s *MemoryNonceStore) Issue(ctx context.Context) (*core.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for value, nonce := range s.nonces {
		if !now.Before(nonce.ExpiresAt) {
			delete(s.nonces, value)
		}
	}

	nonce, err := core.NewNonce(now, s.ttl)
	if err != nil {
		return nil, err
	}

	stored := *nonce
	s.nonces[nonce.Value] = &stored
	return nonce, nil
}

func (s *MemoryNonceStore) Consume(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[value]
	if !ok || !nonce.Consumable(s.now().UTC()) {
		return core.ErrInvalidNonce
	}

	consumedAt := s.now().UTC()
	nonce.ConsumedAt = &consumedAt
	return nil
}

// MemoryUserStore keeps users in mutex-guarded maps.
type MemoryUserStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*core.User
	byWallet map[string]uuid.UUID
}

// NewMemoryUserStore creates an in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:     make(map[uuid.UUID]*core.User),
		byWallet: make(map[string]uuid.UUID),
	}
}

var _ ports.UserStore = (*MemoryUserStore)(nil)

func (s *MemoryUserStore) GetByWallet(ctx context.Context, walletAddress string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byWallet[core.NormalizeAddress(walletAddress)]
	if !ok {
		return nil, core.ErrNotFound
	}
	user := *s.byID[id]
	return &user, nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryUserStore) Create(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byWallet[user.WalletAddress]; exists {
		return fmt.Errorf("wallet %s already registered", user.WalletAddress)
	}

	stored := *user
	s.byID[user.ID] = &stored
	s.byWallet[user.WalletAddress] = user.ID
	return nil
}

func (s *MemoryUserStore) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	user.LastLoginAt = at.UTC()
	return nil
}

// MemorySessionStore keeps sessions in mutex-guarded maps.
type MemorySessionStore struct {
	mu     sync.RWMutex
	byHash map[string]*core.Session
	byID   map[uuid.UUID]*core.Session
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byHash: make(map[string]*core.Session),
		byID:   make(map[uuid.UUID]*core.Session),
	}
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)

func (s *MemorySessionStore) Create(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[session.TokenHash]; exists {
		return fmt.Errorf("session with this token hash already exists")
	}

	stored := *session
	s.byHash[session.TokenHash] = &stored
	s.byID[session.ID] = &stored
	return nil
}

func (s *MemorySessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byHash[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	session.LastUsedAt = at.UTC()
	return nil
}

func (s *MemorySessionStore) Revoke(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.byHash[tokenHash]; ok {
		session.IsActive = false
	}
	return nil
}

func (s *MemorySessionStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.byHash {
		if session.UserID == userID {
			session.IsActive = false
		}
	}
	return nil
}

// MemoryClaimStore keeps the claim ledger in a mutex-guarded slice.
type MemoryClaimStore struct {
	mu     sync.RWMutex
	claims []core.ClaimTransaction
}

// NewMemoryClaimStore creates an in-memory claim ledger.
func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{}
}

var _ ports.ClaimStore = (*MemoryClaimStore)(nil)

func (s *MemoryClaimStore) Insert(ctx context.Context, claim *core.ClaimTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims = append(s.claims, *claim)
	return nil
}

func (s *MemoryClaimStore) ExistsForDay(ctx context.Context, userID uuid.UUID, kind core.ClaimKind, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := dayWindow(at)
	for _, claim := range s.claims {
		created := claim.CreatedAt.UTC()
		if claim.UserID == userID && claim.Kind == kind &&
			!created.Before(start) && created.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryClaimStore) LatestAuthorized(ctx context.Context, userID uuid.UUID, kind core.ClaimKind) (*core.ClaimTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *core.ClaimTransaction
	for i := range s.claims {
		claim := &s.claims[i]
		if claim.UserID != userID || claim.Kind != kind || claim.Status != core.ClaimStatusAuthorized {
			continue
		}
		if latest == nil || claim.CreatedAt.After(latest.CreatedAt) {
			latest = claim
		}
	}
	if latest == nil {
		return nil, core.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryClaimStore) AttachTx(ctx context.Context, id uuid.UUID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.claims {
		if s.claims[i].ID == id {
			s.claims[i].TxHash = txHash
			s.claims[i].Status = core.ClaimStatusSubmitted
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *MemoryClaimStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]core.ClaimTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []core.ClaimTransaction{}
	for _, claim := range s.claims {
		if claim.UserID == userID {
			out = append(out, claim)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
