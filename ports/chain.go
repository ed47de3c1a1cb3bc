package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainReader is the read-only view of the chain the backend needs: the
// verifier contract's per-address claim counter, and the ERC-1271 entry
// point of smart-contract wallets.
type ChainReader interface {
	// ClaimNonce reads the verifier contract's current counter for the
	// claimant. Read fresh on every authorization; caching it would let two
	// authorizations share a nonce.
	ClaimNonce(ctx context.Context, claimant common.Address) (*big.Int, error)

	// IsValidSignature calls isValidSignature(hash, signature) on the wallet
	// contract and reports whether it returned the ERC-1271 magic value.
	IsValidSignature(ctx context.Context, wallet common.Address, hash common.Hash, signature []byte) (bool, error)
}
