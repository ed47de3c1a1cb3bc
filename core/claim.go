package core

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// ClaimKind distinguishes the reward flows a user can be authorized for.
type ClaimKind string

const (
	ClaimDailyBonus ClaimKind = "daily_bonus"
	ClaimGameReward ClaimKind = "game_reward"
)

// Known reports whether k is one of the supported claim kinds.
func (k ClaimKind) Known() bool {
	return k == ClaimDailyBonus || k == ClaimGameReward
}

// SignedClaim is an off-chain claim authorization: a capability, not a
// stored resource. Its authority derives entirely from the signature and is
// bounded by Deadline and by the on-chain nonce it embeds becoming stale the
// instant it is consumed. The holder submits it to the verifier contract
// themselves; the backend never moves funds.
type SignedClaim struct {
	Signature       string   // 65-byte detached signature, 0x-hex
	Amount          *big.Int // wei
	Kind            ClaimKind
	Nonce           *big.Int // verifier contract's per-address counter at signing time
	Deadline        time.Time
	ContractAddress string // verifier contract this authorization targets
}

// Claim audit statuses. "authorized" rows are written when a signature is
// issued; "submitted" once the client reports the on-chain transaction.
const (
	ClaimStatusAuthorized = "authorized"
	ClaimStatusSubmitted  = "submitted"
)

// ClaimTransaction is the non-authoritative audit trail of claim activity.
// The chain, not this table, is the source of truth for whether funds moved.
type ClaimTransaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Kind      ClaimKind `json:"claimType"`
	Amount    string    `json:"amount"` // wei, decimal string
	TxHash    string    `json:"txHash,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
