package protocol

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC1271MagicValue is the bytes4 a contract wallet returns from
// isValidSignature(bytes32,bytes) to accept a signature — the selector of
// that method, per the standard.
var ERC1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// OwnedWallet mirrors the simplest real ERC-1271 wallet: a contract that
// accepts a signature iff it recovers to the wallet's owner key. Used in
// tests to exercise the contract-wallet verification path without a chain.
type OwnedWallet struct {
	address common.Address
	owner   common.Address
}

// NewOwnedWallet deploys the mirror at address with the given owner key.
func NewOwnedWallet(address common.Address, owner *ecdsa.PublicKey) *OwnedWallet {
	return &OwnedWallet{address: address, owner: crypto.PubkeyToAddress(*owner)}
}

// Address returns the wallet contract's address.
func (w *OwnedWallet) Address() common.Address { return w.address }

// IsValidSignature implements the ERC-1271 check: recover the signer of hash
// from sig and compare against the owner. Anything else returns a zero
// bytes4, never an error the caller could mistake for acceptance.
func (w *OwnedWallet) IsValidSignature(hash common.Hash, sig []byte) [4]byte {
	if len(sig) != SignatureLength {
		return [4]byte{}
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return [4]byte{}
	}
	if crypto.PubkeyToAddress(*pub) != w.owner {
		return [4]byte{}
	}
	return ERC1271MagicValue
}
