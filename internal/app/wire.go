package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/cache/redis"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/chain"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/config"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/domain"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/notify"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	PositionStore  domain.PositionStore
	ExecutionStore domain.ExecutionStore
	AuditStore     domain.AuditStore
	Orders         domain.OrderReader

	// Caches
	PriceCache  domain.PriceCache
	LockManager domain.LockManager

	// Chain
	Chain *chain.Client
	Pools domain.PoolReader
	// Exchange is nil in monitor mode; no transactions are signed there.
	Exchange domain.Exchange

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	// Run migrations if enabled.
	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.ExecutionStore = postgres.NewExecutionStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)
	deps.Orders = postgres.NewOrderStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Monitor.PriceTTL.Duration)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Chain ---
	chainClient, err := chain.New(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain client: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	factory := common.HexToAddress(cfg.Chain.Factory)
	wbnb := common.HexToAddress(cfg.Chain.WBNB)
	deps.Pools = chain.NewPoolReader(chainClient, factory, wbnb)

	if strings.ToLower(cfg.Mode) == "trade" {
		router := common.HexToAddress(cfg.Chain.Router)
		dex, err := chain.NewDex(chainClient, router, wbnb, cfg.Wallet.PrivateKey, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: dex: %w", err)
		}
		deps.Exchange = dex
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	return deps, cleanup, nil
}
