package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartpay/config"
	"smartpay/internal/adapter/device"
	httpHandler "smartpay/internal/adapter/http/handler"
	"smartpay/internal/adapter/http/middleware"
	"smartpay/internal/adapter/storage/memory"
	mongoStorage "smartpay/internal/adapter/storage/mongo"
	pgStorage "smartpay/internal/adapter/storage/postgres"
	redisStorage "smartpay/internal/adapter/storage/redis"
	"smartpay/internal/adapter/ws"
	"smartpay/internal/core/ports"
	"smartpay/internal/service"
	"smartpay/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 10 * time.Second
	openAPIPath     = "docs/api/openapi.yaml"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	cards        ports.CardRepository
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	products     ports.ProductRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
	close        func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, balances are lost on restart")
		store := memory.NewStore()
		return &repositories{
			cards:        memory.NewCardRepo(store),
			wallets:      memory.NewWalletRepo(store),
			transactions: memory.NewTransactionRepo(store),
			products:     memory.NewProductRepo(store),
			transactor:   memory.NewTransactor(store),
			health:       memory.HealthCheck{},
			close:        func() {},
		}, nil
	}

	if cfg.Storage.AutoMigrate {
		mg, err := pgStorage.NewMigrator(cfg.Database.MigrateURL(), log)
		if err != nil {
			return nil, err
		}
		err = mg.Up()
		if closeErr := mg.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("closing migrator")
		}
		if err != nil {
			return nil, err
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &repositories{
		cards:        pgStorage.NewCardRepo(pool),
		wallets:      pgStorage.NewWalletRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		products:     pgStorage.NewProductRepo(pool),
		transactor:   pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout),
		health:       pgStorage.NewHealthCheck(pool),
		close:        pool.Close,
	}, nil
}

func serve(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting Smart-Pay ledger")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repos.close()
	checkers := []ports.HealthChecker{repos.health}

	// Redis-backed helpers stay nil when redis is disabled
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   ports.RateLimitStore
		scanDeduper      ports.ScanDeduper
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		scanDeduper = redisStorage.NewScanDeduper(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	catalogSvc := service.NewCatalogService(repos.products, log)
	if cfg.Storage.SeedCatalog {
		if err := catalogSvc.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	dispatcher := service.NewEventDispatcher(
		cfg.Events.BufferSize,
		cfg.Events.HandlerTimeout,
		logger.Component(log, "events"),
		service.NewAuditSubscriber(logger.Component(log, "audit")),
	)

	ledgerSvc := service.NewLedgerService(
		repos.wallets,
		repos.transactions,
		repos.transactor,
		dispatcher,
		service.LedgerLimits{
			MaxAmount:           cfg.Ledger.MaxAmount,
			LockTimeout:         cfg.Ledger.LockTimeout,
			HistoryDefaultLimit: cfg.Ledger.HistoryDefaultLimit,
			HistoryMaxLimit:     cfg.Ledger.HistoryMaxLimit,
		},
		logger.Component(log, "ledger"),
	)
	provisioningSvc := service.NewProvisioningService(repos.cards, repos.wallets, log)

	hub := ws.NewHub(ledgerSvc, catalogSvc, logger.Component(log, "ws"))
	dispatcher.Subscribe(hub)

	if cfg.Mongo.Enabled {
		client, err := mongoStorage.Connect(ctx, cfg.Mongo, log)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}()
		archive := mongoStorage.NewEventArchive(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := archive.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		dispatcher.Subscribe(archive)
		checkers = append(checkers, mongoStorage.NewHealthCheck(client))
	}

	var bus *device.Bus
	if cfg.NATS.Enabled {
		nc, err := device.Connect(cfg.NATS, log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nc.Close()
		bus = device.NewBus(nc, cfg.NATS.TeamID, provisioningSvc, ledgerSvc, scanDeduper, cfg.NATS.ScanDedupeWindow, hub, logger.Component(log, "device"))
		if err := bus.Start(); err != nil {
			return fmt.Errorf("device bus: %w", err)
		}
		dispatcher.Subscribe(bus)
		checkers = append(checkers, device.NewHealthCheck(nc))
	}

	dispatcher.Start()

	specBytes, err := os.ReadFile(openAPIPath)
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:            ledgerSvc,
		Provisioning:      provisioningSvc,
		Catalog:           catalogSvc,
		RateLimitStore:    rateLimitStore,
		RateLimitRules:    middleware.DefaultRateLimitRules(int64(cfg.RateLimit.Requests), cfg.RateLimit.Window),
		IdempotencyCache:  idempotencyCache,
		IdempotencyTTL:    cfg.Idempotency.TTL,
		HealthCheckers:    checkers,
		Realtime:          hub,
		OpenAPISpec:       specBytes,
		MinorUnitExponent: cfg.Ledger.MinorUnitExponent,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		Mode:              cfg.Server.Mode,
		Logger:            log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop intake first, then drain events to the subscribers that are still up
	if bus != nil {
		bus.Close()
	}
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending ledger events dropped")
	}

	log.Info().Msg("Server exited")
	return nil
}
