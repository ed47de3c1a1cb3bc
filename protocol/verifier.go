package protocol

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Rejections mirror the verifier contract's named revert conditions. Each is
// distinct so a client can tell a retryable failure (stale authorization)
// from a security problem (signer mismatch) or an operational one (empty
// contract).
var (
	ErrDeadlineExpired      = errors.New("claim verifier: deadline expired")
	ErrZeroAmount           = errors.New("claim verifier: amount is zero")
	ErrSignatureAlreadyUsed = errors.New("claim verifier: signature already used")
	ErrSignerMismatch       = errors.New("claim verifier: recovered signer is not the registered signer")
	ErrInsufficientBalance  = errors.New("claim verifier: insufficient token balance")
)

// Payout is the event recorded on a successful claim.
type Payout struct {
	Claimant common.Address
	Amount   *big.Int
	Kind     uint8
	Nonce    *big.Int // the counter value consumed by this claim
	Digest   common.Hash
}

// VerifierContract is a behavioral mirror of the deployed claim verifier.
// The chain is the source of truth; this model exists so the backend's
// signing path is tested against the exact acceptance rules the contract
// applies, replay bookkeeping included. The EVM executes transactions
// serially; the mutex stands in for that here.
type VerifierContract struct {
	mu      sync.Mutex
	chainID *big.Int
	address common.Address
	signer  common.Address // registered backend claim signer
	balance *big.Int       // contract's token balance
	nonces  map[common.Address]*big.Int
	used    map[common.Hash]bool
	payouts []Payout
}

// NewVerifierContract deploys the mirror with a registered signer and an
// initial token balance.
func NewVerifierContract(chainID *big.Int, address, signer common.Address, balance *big.Int) *VerifierContract {
	return &VerifierContract{
		chainID: new(big.Int).Set(chainID),
		address: address,
		signer:  signer,
		balance: new(big.Int).Set(balance),
		nonces:  make(map[common.Address]*big.Int),
		used:    make(map[common.Hash]bool),
	}
}

// Nonce returns the current per-address claim counter, as getNonce(address)
// would. Counters start at zero and increment by exactly one per successful
// claim.
func (v *VerifierContract) Nonce(claimant common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.nonceLocked(claimant))
}

// Claim validates and executes claimTokens(amount, kind, deadline, sig) as
// called by claimant at the given time. Rejections are checked in contract
// order; on success the digest is marked used, the counter increments, and
// tokens leave the contract balance in the same (locked) step.
func (v *VerifierContract) Claim(claimant common.Address, amount *big.Int, kind uint8, deadline *big.Int, sig []byte, at time.Time) (*Payout, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if deadline == nil || big.NewInt(at.Unix()).Cmp(deadline) > 0 {
		return nil, ErrDeadlineExpired
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	// The digest is recomputed from the caller's own address, the contract's
	// own nonce counter, and the contract's own chain id and address. None of
	// those can be supplied by the caller, so a stale or cross-deployment
	// authorization produces a different digest and fails signer recovery.
	msg := ClaimMessage{
		Claimant: claimant,
		Amount:   amount,
		Kind:     kind,
		Nonce:    v.nonceLocked(claimant),
		Deadline: deadline,
		ChainID:  v.chainID,
		Contract: v.address,
	}
	digest := msg.Digest()
	if v.used[digest] {
		return nil, ErrSignatureAlreadyUsed
	}

	recovered, err := RecoverSigner(msg, sig)
	if err != nil || recovered != v.signer {
		return nil, ErrSignerMismatch
	}

	if v.balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}

	v.used[digest] = true
	v.nonces[claimant] = new(big.Int).Add(v.nonceLocked(claimant), big.NewInt(1))
	v.balance.Sub(v.balance, amount)

	payout := Payout{
		Claimant: claimant,
		Amount:   new(big.Int).Set(amount),
		Kind:     kind,
		Nonce:    msg.Nonce,
		Digest:   digest,
	}
	v.payouts = append(v.payouts, payout)
	return &payout, nil
}

// Fund adds tokens to the contract balance.
func (v *VerifierContract) Fund(amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance.Add(v.balance, amount)
}

// Balance returns the contract's remaining token balance.
func (v *VerifierContract) Balance() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance)
}

// Payouts returns the emitted payout events in order.
func (v *VerifierContract) Payouts() []Payout {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Payout, len(v.payouts))
	copy(out, v.payouts)
	return out
}

// Address returns the contract's own address.
func (v *VerifierContract) Address() common.Address { return v.address }

// ChainID returns the chain the mirror models.
func (v *VerifierContract) ChainID() *big.Int { return new(big.Int).Set(v.chainID) }

func (v *VerifierContract) nonceLocked(claimant common.Address) *big.Int {
	if n, ok := v.nonces[claimant]; ok {
		return n
	}
	return big.NewInt(0)
}
