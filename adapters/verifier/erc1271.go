package verifier

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sproutgame/sprout-server/ports"
)

// ERC1271Strategy verifies smart-contract wallets by asking the wallet
// contract itself via isValidSignature(bytes32,bytes). It needs a chain
// roundtrip, so it runs after the keypair strategy. An RPC failure is
// Unavailable, never Verified: the composite fails closed.
type ERC1271Strategy struct {
	chain ports.ChainReader
}

// NewERC1271Strategy returns the contract-wallet strategy backed by the
// given chain reader.
func NewERC1271Strategy(chain ports.ChainReader) *ERC1271Strategy {
	return &ERC1271Strategy{chain: chain}
}

func (*ERC1271Strategy) Name() string { return "erc1271" }

func (s *ERC1271Strategy) Verify(ctx context.Context, wallet common.Address, message string, signature []byte) (Outcome, error) {
	// The contract receives the same EIP-191 hash a keypair wallet would
	// have signed, so one client-side signing flow serves both paths.
	hash := common.BytesToHash(accounts.TextHash([]byte(message)))

	ok, err := s.chain.IsValidSignature(ctx, wallet, hash, signature)
	if err != nil {
		return Unavailable, fmt.Errorf("isValidSignature call failed: %w", err)
	}
	if !ok {
		return Rejected, nil
	}
	return Verified, nil
}
