// Package protocol defines the byte-exact claim authorization format shared
// between the backend signer and the on-chain claim verifier, plus a
// behavioral mirror of the verifier contract used to test the whole flow.
package protocol

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Claim kinds as encoded in the packed message (uint8 on-chain).
const (
	KindDailyBonus uint8 = 0
	KindGameReward uint8 = 1
)

// SignatureLength is the expected length of a detached claim signature
// (r ‖ s ‖ v).
const SignatureLength = 65

// ClaimMessage is the canonical payload both the backend signer and the
// verifier contract hash. Field order and widths are fixed; changing either
// invalidates every outstanding authorization. ChainID and Contract are part
// of the message so a signature for one deployment cannot be replayed on
// another network or contract.
type ClaimMessage struct {
	Claimant common.Address // Address receiving the payout
	Amount   *big.Int       // Payout in wei
	Kind     uint8          // KindDailyBonus or KindGameReward
	Nonce    *big.Int       // Verifier contract's per-address counter
	Deadline *big.Int       // Unix seconds after which the claim is void
	ChainID  *big.Int       // Chain the verifier contract lives on
	Contract common.Address // The verifier contract itself
}

// Digest returns keccak256 over the tightly packed message:
//
//	address(20) ‖ uint256(32) ‖ uint8(1) ‖ uint256(32) ‖ uint256(32) ‖ uint256(32) ‖ address(20)
//
// matching abi.encodePacked in the contract.
func (m ClaimMessage) Digest() common.Hash {
	packed := make([]byte, 0, 20+32+1+32+32+32+20)
	packed = append(packed, m.Claimant.Bytes()...)
	packed = append(packed, u256(m.Amount)...)
	packed = append(packed, m.Kind)
	packed = append(packed, u256(m.Nonce)...)
	packed = append(packed, u256(m.Deadline)...)
	packed = append(packed, u256(m.ChainID)...)
	packed = append(packed, m.Contract.Bytes()...)
	return crypto.Keccak256Hash(packed)
}

// SignedDigest is the EIP-191 personal-message hash of Digest. The contract
// applies the same prefix before ecrecover, so signatures produced over this
// hash verify on both sides.
func (m ClaimMessage) SignedDigest() common.Hash {
	return common.BytesToHash(accounts.TextHash(m.Digest().Bytes()))
}

// Sign produces the detached 65-byte claim signature with V in {27, 28}, the
// form Solidity's ecrecover expects.
func Sign(m ClaimMessage, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(m.SignedDigest().Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("signing claim digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner returns the address whose key produced sig over the message.
// V is accepted in either {0, 1} or {27, 28}.
func RecoverSigner(m ClaimMessage, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("claim signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(m.SignedDigest().Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering claim signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// u256 renders n as a 32-byte big-endian EVM word without mutating it.
func u256(n *big.Int) []byte {
	if n == nil {
		n = new(big.Int)
	}
	return math.U256Bytes(new(big.Int).Set(n))
}
