// Package app wires configuration, storage, chain collaborators and services
// into the HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"

	"nusd-wallet/config"
	httpHandler "nusd-wallet/internal/adapter/http/handler"
	"nusd-wallet/internal/adapter/http/middleware"
	memStorage "nusd-wallet/internal/adapter/storage/memory"
	pgStorage "nusd-wallet/internal/adapter/storage/postgres"
	redisStorage "nusd-wallet/internal/adapter/storage/redis"
	"nusd-wallet/internal/adapter/tron"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/metrics"
	"nusd-wallet/internal/service"

	"github.com/rs/zerolog"
)

// Stores bundles the repositories of the selected storage driver.
type Stores struct {
	Users       ports.UserRepository
	Accounts    ports.AccountRepository
	Ledger      ports.LedgerRepository
	Vaults      ports.VaultRepository
	Idempotency ports.IdempotencyRepository
	Audit       ports.AuditRepository
	Transactor  ports.DBTransactor
	Health      ports.HealthChecker
	close       func()
}

// OpenStores opens the storage backend named by cfg.Storage.Driver, running
// migrations first when the driver is postgres and auto_migrate is set.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, all data is lost on restart")
		s := memStorage.NewStore()
		return &Stores{
			Users:       memStorage.NewUserRepo(s),
			Accounts:    memStorage.NewAccountRepo(s),
			Ledger:      memStorage.NewLedgerRepo(s),
			Vaults:      memStorage.NewVaultRepo(s),
			Idempotency: memStorage.NewIdempotencyRepo(s),
			Audit:       memStorage.NewAuditRepo(),
			Transactor:  s,
			Health:      memStorage.HealthCheck{},
			close:       func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(cfg.Database.MigrateURL(), log); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("PostgreSQL connected")

	return &Stores{
		Users:       pgStorage.NewUserRepo(pool),
		Accounts:    pgStorage.NewAccountRepo(pool),
		Ledger:      pgStorage.NewLedgerRepo(pool),
		Vaults:      pgStorage.NewVaultRepo(pool),
		Idempotency: pgStorage.NewIdempotencyRepo(pool),
		Audit:       pgStorage.NewAuditRepo(pool),
		Transactor:  pgStorage.NewTransactor(pool),
		Health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}

// Close releases the backend.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// App is a fully wired API.
type App struct {
	Handler http.Handler
	Stores  *Stores
	Metrics *metrics.Metrics

	closers []func()
}

// New builds the API from cfg. Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret must be set")
	}

	st, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a := &App{Stores: st, closers: []func(){st.Close}}

	healthCheckers := []ports.HealthChecker{st.Health}

	// Redis backs the idempotency fast path and rate limiting when enabled.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   middleware.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, using per-process idempotency cache and rate limits")
		idempotencyCache = memStorage.NewIdempotencyCache()
		rateLimitStore = middleware.NewLocalRateLimitStore()
	}

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing encryption service: %w", err)
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Chain collaborators
	explorer := tron.NewExplorer(cfg.Tron, &http.Client{Timeout: cfg.Tron.Timeout}, log)
	relay := tron.NewRelay(cfg.Relay, sigSvc, &http.Client{Timeout: cfg.Relay.Timeout}, log)
	healthCheckers = append(healthCheckers, explorer)

	a.Metrics = metrics.New()
	policy := service.Policy{
		MinDeposit:    cfg.Policy.MinDeposit,
		MinWithdrawal: cfg.Policy.MinWithdrawal,
		MaxRetries:    cfg.Policy.MaxRetries,
		Asset:         cfg.Tron.USDTContract,
	}

	// Business services
	authSvc := service.NewAuthService(st.Users, st.Accounts, st.Transactor, hashSvc, tokenSvc, cfg.Auth.AdminEmails, log)
	accountSvc := service.NewAccountService(st.Accounts, st.Ledger, st.Transactor, log)
	transferSvc := service.NewTransferService(st.Accounts, st.Ledger, st.Idempotency, idempotencyCache, st.Transactor, policy, a.Metrics, log)
	withdrawalSvc := service.NewWithdrawalService(st.Accounts, st.Ledger, st.Vaults, relay, encSvc, st.Transactor, policy, a.Metrics, log)
	depositSvc := service.NewDepositService(st.Accounts, st.Ledger, st.Vaults, explorer, st.Transactor, policy, a.Metrics, log)
	vaultSvc := service.NewVaultService(st.Vaults, encSvc, log)
	auditSvc := service.NewAuditService(st.Audit, log)

	a.Handler = httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		AccountSvc:     accountSvc,
		TransferSvc:    transferSvc,
		WithdrawalSvc:  withdrawalSvc,
		DepositSvc:     depositSvc,
		VaultSvc:       vaultSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Metrics:        a.Metrics,
		Logger:         log,
	})

	return a, nil
}

// Close releases every resource New acquired, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
