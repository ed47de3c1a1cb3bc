// Package chain reads the claim verifier contract and ERC-1271 wallets over
// an Ethereum RPC endpoint. All calls are read-only; the backend never sends
// transactions.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/sproutgame/sprout-server/ports"
	"github.com/sproutgame/sprout-server/protocol"
)

// readerABI covers the two read-only methods the backend consumes:
// the verifier contract's per-address claim counter, and the ERC-1271
// entry point of wallet contracts.
const readerABI = `[
	{"name":"getNonce","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"isValidSignature","type":"function","stateMutability":"view","inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[{"name":"","type":"bytes4"}]}
]`

// Reader implements ports.ChainReader over any ethereum.ContractCaller,
// normally an *ethclient.Client.
type Reader struct {
	caller   ethereum.ContractCaller
	abi      abi.ABI
	contract common.Address // claim verifier contract
	timeout  time.Duration
}

// NewReader creates a chain reader bound to the claim verifier contract.
// A non-zero timeout bounds every RPC call independently of the request
// context.
func NewReader(caller ethereum.ContractCaller, contract common.Address, timeout time.Duration) (*Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(readerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reader ABI: %w", err)
	}
	return &Reader{caller: caller, abi: parsed, contract: contract, timeout: timeout}, nil
}

var _ ports.ChainReader = (*Reader)(nil)

// ClaimNonce reads getNonce(claimant) from the verifier contract. The value
// must be read fresh for every authorization; a cached value would let two
// authorizations share a nonce.
func (r *Reader) ClaimNonce(ctx context.Context, claimant common.Address) (*big.Int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	data, err := r.abi.Pack("getNonce", claimant)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getNonce call: %w", err)
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getNonce call failed: %w", err)
	}

	results, err := r.abi.Unpack("getNonce", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode getNonce result: %w", err)
	}
	nonce, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getNonce result type %T", results[0])
	}
	return nonce, nil
}

// IsValidSignature calls isValidSignature(hash, signature) on the wallet
// contract. A revert or an empty return (an EOA, or a contract without the
// method) is a decisive rejection; only transport failures return an error,
// which callers treat as "unavailable", never as acceptance.
func (r *Reader) IsValidSignature(ctx context.Context, wallet common.Address, hash common.Hash, signature []byte) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	data, err := r.abi.Pack("isValidSignature", hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to pack isValidSignature call: %w", err)
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: data}, nil)
	if err != nil {
		var de rpc.DataError
		if errors.As(err, &de) {
			// The wallet executed and reverted: it rejects the signature.
			return false, nil
		}
		return false, fmt.Errorf("isValidSignature call failed: %w", err)
	}
	if len(out) < 4 {
		return false, nil
	}

	return [4]byte(out[:4]) == protocol.ERC1271MagicValue, nil
}

func (r *Reader) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
