package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
	"github.com/sproutgame/sprout-server/protocol"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ClaimConfig carries the signing identity and payout policy of the claim
// service. The signer key is dedicated to claim authorizations and never
// used anywhere else.
type ClaimConfig struct {
	SignerKey           *ecdsa.PrivateKey
	ChainID             *big.Int
	ContractAddress     common.Address
	DeadlineTTL         time.Duration
	DailyBonusWei       *big.Int
	RewardMultiplierWei *big.Int
}

func (c ClaimConfig) validate() error {
	switch {
	case c.SignerKey == nil:
		return errors.New("signer key is required")
	case c.ChainID == nil || c.ChainID.Sign() <= 0:
		return errors.New("positive chain id is required")
	case c.ContractAddress == (common.Address{}):
		return errors.New("verifier contract address is required")
	case c.DeadlineTTL <= 0:
		return errors.New("positive deadline ttl is required")
	case c.DailyBonusWei == nil || c.DailyBonusWei.Sign() <= 0:
		return errors.New("positive daily bonus amount is required")
	case c.RewardMultiplierWei == nil || c.RewardMultiplierWei.Sign() <= 0:
		return errors.New("positive reward multiplier is required")
	}
	return nil
}

// ClaimService authorizes token claims off-chain and keeps the audit trail
// of what the backend signed and what clients report back. It never submits
// transactions itself.
type ClaimService struct {
	claims   ports.ClaimStore
	chain    ports.ChainReader
	eventPub ports.EventPublisher
	log      *slog.Logger

	signerKey           *ecdsa.PrivateKey
	chainID             *big.Int
	contract            common.Address
	deadlineTTL         time.Duration
	dailyBonusWei       *big.Int
	rewardMultiplierWei *big.Int

	now func() time.Time
}

// NewClaimService creates the claim service, rejecting incomplete configs
// up front rather than failing on the first authorization.
func NewClaimService(
	claims ports.ClaimStore,
	chain ports.ChainReader,
	eventPub ports.EventPublisher,
	log *slog.Logger,
	cfg ClaimConfig,
) (*ClaimService, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("claim service config: %w", err)
	}
	return &ClaimService{
		claims:              claims,
		chain:               chain,
		eventPub:            eventPub,
		log:                 log,
		signerKey:           cfg.SignerKey,
		chainID:             cfg.ChainID,
		contract:            cfg.ContractAddress,
		deadlineTTL:         cfg.DeadlineTTL,
		dailyBonusWei:       cfg.DailyBonusWei,
		rewardMultiplierWei: cfg.RewardMultiplierWei,
		now:                 time.Now,
	}, nil
}

// Authorize checks eligibility for the claim kind, derives the amount, and
// signs a claim authorization the verifier contract will accept exactly
// once. The per-address nonce is read from the chain on every call; a
// cached value could hand two authorizations the same nonce.
func (s *ClaimService) Authorize(ctx context.Context, session *core.Session, kind core.ClaimKind, score int64) (*core.SignedClaim, error) {
	now := s.now().UTC()

	amount, err := s.claimAmount(ctx, session.UserID, kind, score, now)
	if err != nil {
		return nil, err
	}

	claimant := common.HexToAddress(session.WalletAddress)
	nonce, err := s.chain.ClaimNonce(ctx, claimant)
	if err != nil {
		return nil, fmt.Errorf("read claim nonce for %s: %w", session.WalletAddress, err)
	}

	deadline := now.Add(s.deadlineTTL)
	sig, err := protocol.Sign(protocol.ClaimMessage{
		Claimant: claimant,
		Amount:   amount,
		Kind:     wireKind(kind),
		Nonce:    nonce,
		Deadline: big.NewInt(deadline.Unix()),
		ChainID:  s.chainID,
		Contract: s.contract,
	}, s.signerKey)
	if err != nil {
		return nil, fmt.Errorf("sign claim authorization: %w", err)
	}

	// Recorded before the signature leaves the building, so the next
	// daily-bonus eligibility check sees this grant.
	record := &core.ClaimTransaction{
		ID:        uuid.New(),
		UserID:    session.UserID,
		Kind:      kind,
		Amount:    amount.String(),
		Status:    core.ClaimStatusAuthorized,
		CreatedAt: now,
	}
	if err := s.claims.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("record claim authorization: %w", err)
	}

	signed := &core.SignedClaim{
		Signature:       hexutil.Encode(sig),
		Amount:          amount,
		Kind:            kind,
		Nonce:           nonce,
		Deadline:        deadline,
		ContractAddress: s.contract.Hex(),
	}

	if err := s.eventPub.PublishClaimAuthorized(ctx, session.UserID, session.WalletAddress, signed); err != nil {
		s.log.WarnContext(ctx, "failed to publish claim event", "error", err, "user_id", session.UserID)
	}

	return signed, nil
}

// Record stores a client-reported claim transaction. When an authorized row
// of the same kind is still open the report completes it; otherwise a
// standalone submitted row is written. Audit only: the chain stays the
// source of truth for whether funds moved.
func (s *ClaimService) Record(ctx context.Context, session *core.Session, kind core.ClaimKind, amount, txHash string) (*core.ClaimTransaction, error) {
	if !kind.Known() {
		return nil, core.NewError(core.CodeInvalidRequest, fmt.Sprintf("unsupported claim type %q", kind))
	}
	reported, err := parseWeiAmount(amount)
	if err != nil {
		return nil, err
	}
	if err := validateTxHash(txHash); err != nil {
		return nil, err
	}

	latest, err := s.claims.LatestAuthorized(ctx, session.UserID, kind)
	switch {
	case err == nil:
		if granted, err := decimal.NewFromString(latest.Amount); err == nil && !granted.Equal(reported) {
			s.log.WarnContext(ctx, "reported claim amount differs from authorized amount",
				"user_id", session.UserID, "authorized", latest.Amount, "reported", amount)
		}
		if err := s.claims.AttachTx(ctx, latest.ID, txHash); err != nil {
			return nil, err
		}
		latest.TxHash = txHash
		latest.Status = core.ClaimStatusSubmitted
		return latest, nil

	case errors.Is(err, core.ErrNotFound):
		record := &core.ClaimTransaction{
			ID:        uuid.New(),
			UserID:    session.UserID,
			Kind:      kind,
			Amount:    reported.String(),
			TxHash:    txHash,
			Status:    core.ClaimStatusSubmitted,
			CreatedAt: s.now().UTC(),
		}
		if err := s.claims.Insert(ctx, record); err != nil {
			return nil, err
		}
		return record, nil

	default:
		return nil, err
	}
}

// History returns the user's claim audit rows, newest first.
func (s *ClaimService) History(ctx context.Context, session *core.Session, limit int) ([]core.ClaimTransaction, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.claims.ListByUser(ctx, session.UserID, limit)
}

func (s *ClaimService) claimAmount(ctx context.Context, userID uuid.UUID, kind core.ClaimKind, score int64, now time.Time) (*big.Int, error) {
	switch kind {
	case core.ClaimDailyBonus:
		claimed, err := s.claims.ExistsForDay(ctx, userID, kind, now)
		if err != nil {
			return nil, fmt.Errorf("check daily claim: %w", err)
		}
		if claimed {
			return nil, core.ErrDuplicateClaim
		}
		return new(big.Int).Set(s.dailyBonusWei), nil

	case core.ClaimGameReward:
		if score <= 0 {
			return nil, core.ErrInvalidScore
		}
		return new(big.Int).Mul(big.NewInt(score), s.rewardMultiplierWei), nil

	default:
		return nil, core.NewError(core.CodeInvalidRequest, fmt.Sprintf("unsupported claim type %q", kind))
	}
}

func wireKind(kind core.ClaimKind) uint8 {
	if kind == core.ClaimGameReward {
		return protocol.KindGameReward
	}
	return protocol.KindDailyBonus
}

func parseWeiAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, core.NewError(core.CodeInvalidRequest, "amount must be a decimal number")
	}
	if d.Sign() <= 0 || !d.IsInteger() {
		return decimal.Decimal{}, core.NewError(core.CodeInvalidRequest, "amount must be a positive integer wei value")
	}
	return d, nil
}

func validateTxHash(txHash string) error {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return core.NewError(core.CodeInvalidRequest, "txHash must be a 32-byte 0x-prefixed hash")
	}
	return nil
}
