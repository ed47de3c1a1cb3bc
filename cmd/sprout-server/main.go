package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/sproutgame/sprout-server/adapters/chain"
	"github.com/sproutgame/sprout-server/adapters/events"
	"github.com/sproutgame/sprout-server/adapters/store"
	"github.com/sproutgame/sprout-server/adapters/tokenizer"
	"github.com/sproutgame/sprout-server/adapters/verifier"
	"github.com/sproutgame/sprout-server/config"
	"github.com/sproutgame/sprout-server/service"
	transport "github.com/sproutgame/sprout-server/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("SPROUT_CONFIG_DIR"))
	if err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(log)

	db, err := store.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewSlogLogger(log),
	)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer publisher.Close()

	ethClient, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("dial chain rpc: %w", err)
	}
	defer ethClient.Close()

	reader, err := chain.NewReader(ethClient, cfg.ContractAddress(), cfg.Chain.RPCTimeout)
	if err != nil {
		return fmt.Errorf("create chain reader: %w", err)
	}

	tok, err := tokenizer.NewJWTTokenizer([]byte(cfg.Session.Secret))
	if err != nil {
		return fmt.Errorf("create tokenizer: %w", err)
	}

	eventPub := events.NewWatermillPublisher(publisher)

	authService := service.NewAuthService(
		store.NewPostgresNonceStore(db, cfg.Nonce.TTL),
		store.NewPostgresUserStore(db),
		store.NewPostgresSessionStore(db),
		tok,
		verifier.New(log, verifier.NewEOAStrategy(), verifier.NewERC1271Strategy(reader)),
		eventPub,
		log,
		cfg.Session.TTL,
	)

	signerKey, err := cfg.SignerKey()
	if err != nil {
		return err
	}
	dailyBonus, err := cfg.DailyBonus()
	if err != nil {
		return err
	}
	multiplier, err := cfg.RewardMultiplier()
	if err != nil {
		return err
	}

	claimService, err := service.NewClaimService(
		store.NewPostgresClaimStore(db),
		reader,
		eventPub,
		log,
		service.ClaimConfig{
			SignerKey:           signerKey,
			ChainID:             cfg.ChainID(),
			ContractAddress:     cfg.ContractAddress(),
			DeadlineTTL:         cfg.Claim.DeadlineTTL,
			DailyBonusWei:       dailyBonus,
			RewardMultiplierWei: multiplier,
		},
	)
	if err != nil {
		return fmt.Errorf("create claim service: %w", err)
	}

	router := transport.SetupRouter(authService, claimService, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
