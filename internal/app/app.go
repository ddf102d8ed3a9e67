// Package app wires configuration into the repository and service graph
// shared by the server and the background binaries.
package app

import (
	"context"
	"fmt"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"fuelstation/internal/core/security"
	"fuelstation/internal/domain/auth"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/domain/variance"
	"fuelstation/internal/infrastructure/cache"
	"fuelstation/internal/infrastructure/config"
	v1 "fuelstation/internal/infrastructure/http/v1"
	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/internal/infrastructure/storage/postgres/fifo_repo"
	"fuelstation/internal/infrastructure/storage/postgres/ledger_repo"
	"fuelstation/internal/infrastructure/storage/postgres/reading_repo"
	"fuelstation/internal/infrastructure/storage/postgres/reconciliation_repo"
	"fuelstation/internal/infrastructure/storage/postgres/station_repo"
	"fuelstation/pkg/logger"
	"fuelstation/pkg/numerator"
)

// App is the wired service graph.
type App struct {
	Config *config.Config

	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Redis       *redis.Client
	Idempotency *postgres.IdempotencyStore
	JWT         *auth.JWTService

	Services v1.Services

	prices *cache.PriceListener
}

// New connects to PostgreSQL and, when enabled, Redis, then builds every service.
// A Redis failure at startup is fatal only when Redis is enabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &App{
		Config:    cfg,
		Pool:      pool,
		TxManager: postgres.NewTxManager(pool, cfg.Database.StatementTimeout),
	}
	a.Idempotency = postgres.NewIdempotencyStore(a.TxManager, 0)

	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	a.JWT = auth.NewJWTService(jwtCfg)

	var priceRepo pricing.Repository = station_repo.NewPriceRepo(a.TxManager)
	var locker reconciliation.Locker = reconciliation.NopLocker{}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.Redis = client

		priceCache := cache.NewPriceCache(priceRepo, cache.NewRedisStore(client), cfg.Redis.PriceCacheTTL)
		a.prices = cache.NewPriceListener(pool.Pool, priceCache)
		priceRepo = priceCache
		locker = cache.NewReconciliationLocker(redislock.New(client), cfg.Redis.LockTTL)
		logger.Info(ctx, "redis enabled", "addr", cfg.Redis.Addr)
	}

	a.Services = a.build(priceRepo, locker)
	return a, nil
}

func (a *App) build(priceRepo pricing.Repository, locker reconciliation.Locker) v1.Services {
	txm := a.TxManager
	policy := security.NewStationPolicy()
	rules := a.Config.Reconciliation.Rules()

	registryRepo := station_repo.NewRegistryRepo(txm)
	readingRepo := reading_repo.NewReadingRepo(txm)
	deliveryRepo := reading_repo.NewDeliveryRepo(txm)
	reconRepo := reconciliation_repo.NewReconciliationRepo(txm)

	reg := registry.NewService(registryRepo, policy)
	intake := readings.NewService(readingRepo, reg, txm, txm, reconRepo, rules)
	layers := fifo.NewService(fifo_repo.NewFIFORepo(txm), txm)
	prices := pricing.NewService(priceRepo)
	journals := numerator.New(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	}, numerator.JournalConfig())
	books := ledger.NewService(ledger_repo.NewLedgerRepo(txm), journals)
	notifier := variance.NewService(reconciliation_repo.NewVarianceRepo(txm), registryRepo, policy, txm,
		a.Config.Reconciliation.Thresholds)
	deliveries := delivery.NewService(deliveryRepo, reg, layers, reconRepo, txm, txm)

	engine := reconciliation.NewEngine(reconciliation.Deps{
		Repo:       reconRepo,
		Readings:   readingRepo,
		Rules:      rules,
		Registry:   reg,
		Deliveries: deliveryRepo,
		FIFO:       layers,
		Prices:     prices,
		Ledger:     books,
		Variance:   notifier,
		Policy:     policy,
		TxManager:  txm,
		Keys:       txm,
		Locker:     locker,
		Events:     reconciliation_repo.NewEventOutbox(txm),
	}, reconciliation.Config{Timeout: a.Config.Reconciliation.Timeout})

	return v1.Services{
		Registry: reg,
		Readings: intake,
		Delivery: deliveries,
		Variance: notifier,
		Ledger:   books,
		Engine:   engine,
	}
}

// Start runs background listeners. Safe to call without Redis.
func (a *App) Start(ctx context.Context) {
	if a.prices != nil {
		a.prices.Start(ctx)
	}
}

// OutboxHandler returns the relay target: Redis pub/sub when enabled, the log otherwise.
func (a *App) OutboxHandler() postgres.OutboxHandler {
	if a.Redis != nil {
		return cache.NewEventBroadcaster(a.Redis)
	}
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		logger.Info(ctx, "outbox event",
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"payload", string(msg.Payload),
		)
		return nil
	})
}

// Close stops listeners and releases connections.
func (a *App) Close() {
	if a.prices != nil {
		a.prices.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn(context.Background(), "redis close failed", "error", err)
		}
	}
	a.Pool.Close()
}
