// Package config loads server configuration from an optional config.yaml
// and SPROUT_-prefixed environment overrides.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Session  Session
	Nonce    Nonce
	Chain    Chain
	Claim    Claim
	Log      Log
}

type Server struct {
	Addr string
}

type Postgres struct {
	DSN string
}

type Redis struct {
	URL string
}

type Session struct {
	Secret string
	TTL    time.Duration
}

type Nonce struct {
	TTL time.Duration
}

type Chain struct {
	RPCURL          string
	ID              int64
	ContractAddress string
	RPCTimeout      time.Duration
}

type Claim struct {
	SignerKey           string // secp256k1 private key, hex with or without 0x
	DeadlineTTL         time.Duration
	DailyBonusWei       string
	RewardMultiplierWei string
}

type Log struct {
	Level string
}

// Load reads configuration and validates it. A missing config file is not
// an error: environment variables and defaults carry a full deployment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPROUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key gets a default so environment overrides bind even without a
// config file. Required secrets default to empty and fail validation.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9000")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "168h")
	v.SetDefault("nonce.ttl", "5m")
	v.SetDefault("chain.rpcurl", "")
	v.SetDefault("chain.id", 0)
	v.SetDefault("chain.contractaddress", "")
	v.SetDefault("chain.rpctimeout", "10s")
	v.SetDefault("claim.signerkey", "")
	v.SetDefault("claim.deadlinettl", "5m")
	v.SetDefault("claim.dailybonuswei", "1000000000000000000")
	v.SetDefault("claim.rewardmultiplierwei", "1000000000000000")
	v.SetDefault("log.level", "info")
}

// Validate rejects configurations the server could not run with. The
// parseable fields are parsed here once so startup fails before anything is
// listening.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("config: postgres.dsn is required")
	}
	if len(c.Session.Secret) < 32 {
		return errors.New("config: session.secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session.ttl must be positive")
	}
	if c.Nonce.TTL <= 0 {
		return errors.New("config: nonce.ttl must be positive")
	}
	if c.Chain.RPCURL == "" {
		return errors.New("config: chain.rpcurl is required")
	}
	if c.Chain.ID <= 0 {
		return errors.New("config: chain.id must be positive")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return errors.New("config: chain.contractaddress is not a hex address")
	}
	if c.Claim.DeadlineTTL <= 0 {
		return errors.New("config: claim.deadlinettl must be positive")
	}
	if _, err := c.SignerKey(); err != nil {
		return fmt.Errorf("config: claim.signerkey: %w", err)
	}
	if _, err := c.DailyBonus(); err != nil {
		return fmt.Errorf("config: claim.dailybonuswei: %w", err)
	}
	if _, err := c.RewardMultiplier(); err != nil {
		return fmt.Errorf("config: claim.rewardmultiplierwei: %w", err)
	}
	return nil
}

// SignerKey parses the claim signing key.
func (c *Config) SignerKey() (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(c.Claim.SignerKey, "0x"))
}

// ContractAddress returns the verifier contract address.
func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Chain.ContractAddress)
}

// ChainID returns the chain identifier claims are bound to.
func (c *Config) ChainID() *big.Int {
	return big.NewInt(c.Chain.ID)
}

// DailyBonus returns the fixed daily bonus payout in wei.
func (c *Config) DailyBonus() (*big.Int, error) {
	return parseWei(c.Claim.DailyBonusWei)
}

// RewardMultiplier returns the wei paid per game score point.
func (c *Config) RewardMultiplier() (*big.Int, error) {
	return parseWei(c.Claim.RewardMultiplierWei)
}

// LogLevel maps the configured level name onto slog, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseWei(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("not a positive wei amount: %q", s)
	}
	return n, nil
}
