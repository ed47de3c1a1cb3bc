package verifier

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sproutgame/sprout-server/protocol"
)

// EOAStrategy verifies plain keypair wallets by recovering the signing
// address from an EIP-191 personal-sign signature. Cheap and local, so it
// runs first; a rejection here only means "not provably a keypair wallet".
type EOAStrategy struct{}

// NewEOAStrategy returns the keypair recovery strategy.
func NewEOAStrategy() EOAStrategy { return EOAStrategy{} }

func (EOAStrategy) Name() string { return "eoa" }

func (EOAStrategy) Verify(_ context.Context, wallet common.Address, message string, signature []byte) (Outcome, error) {
	if len(signature) != protocol.SignatureLength {
		return Rejected, fmt.Errorf("signature is %d bytes, want %d", len(signature), protocol.SignatureLength)
	}

	normalized := make([]byte, protocol.SignatureLength)
	copy(normalized, signature)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), normalized)
	if err != nil {
		return Rejected, fmt.Errorf("failed to recover public key: %w", err)
	}

	if recovered := crypto.PubkeyToAddress(*pub); recovered != wallet {
		return Rejected, fmt.Errorf("recovered %s", recovered.Hex())
	}

	return Verified, nil
}
