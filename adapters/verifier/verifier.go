// Package verifier implements wallet signature verification as an ordered
// list of strategies with first-success semantics. Each strategy returns a
// definite outcome; a request is accepted only when some strategy verifies
// it, so infrastructure failures can never read as valid signatures.
package verifier

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// Outcome is a strategy's verdict on one signature.
type Outcome int

const (
	// Verified means the strategy positively confirmed the signature.
	Verified Outcome = iota

	// Rejected means the strategy checked the signature and it did not
	// match. For the keypair strategy this is not conclusive: the wallet may
	// be a contract, which a later strategy handles.
	Rejected

	// Unavailable means the strategy could not reach a verdict, typically
	// because the chain RPC failed. Counts as a failure unless another
	// strategy verifies.
	Unavailable
)

// Strategy is a single way of checking that a wallet signed a message.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Verify returns the strategy's verdict. The error is diagnostic detail
	// for Rejected/Unavailable outcomes; it is logged, never returned to
	// callers.
	Verify(ctx context.Context, wallet common.Address, message string, signature []byte) (Outcome, error)
}

// Verifier composes strategies in order. The first Verified outcome wins;
// when every strategy rejects or is unavailable the composite fails closed
// with core.ErrInvalidSignature.
type Verifier struct {
	strategies []Strategy
	log        *slog.Logger
}

// New creates a composite verifier trying strategies in the given order.
func New(log *slog.Logger, strategies ...Strategy) *Verifier {
	return &Verifier{strategies: strategies, log: log}
}

var _ ports.SignatureVerifier = (*Verifier)(nil)

// Verify checks the hex-encoded signature over message against the claimed
// wallet address.
func (v *Verifier) Verify(ctx context.Context, address, message, signature string) error {
	if !common.IsHexAddress(address) {
		return core.WrapError(core.ErrInvalidSignature, errNotAnAddress(address))
	}
	wallet := common.HexToAddress(address)

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return core.WrapError(core.ErrInvalidSignature, err)
	}

	for _, strategy := range v.strategies {
		outcome, verr := strategy.Verify(ctx, wallet, message, sig)
		switch outcome {
		case Verified:
			v.log.DebugContext(ctx, "signature verified",
				"strategy", strategy.Name(), "address", wallet.Hex())
			return nil
		case Rejected:
			v.log.DebugContext(ctx, "signature rejected",
				"strategy", strategy.Name(), "address", wallet.Hex(), "reason", verr)
		case Unavailable:
			// Not evidence either way, but worth noticing: a flapping RPC
			// node makes every contract wallet unable to log in.
			v.log.WarnContext(ctx, "verification strategy unavailable",
				"strategy", strategy.Name(), "address", wallet.Hex(), "reason", verr)
		}
	}

	return core.ErrInvalidSignature
}

type errNotAnAddress string

func (e errNotAnAddress) Error() string { return "not a hex address: " + string(e) }
