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

	"nusd-wallet/config"
	httpHandler "nusd-wallet/internal/adapter/http/handler"
	pgStorage "nusd-wallet/internal/adapter/storage/postgres"
	"nusd-wallet/internal/adapter/tron"
	"nusd-wallet/internal/metrics"
	"nusd-wallet/internal/service"
	"nusd-wallet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to cron's logger interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func main() {
	cfg, err := config.Load(os.Getenv("NUSD_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, "scanner")
	gin.SetMode(cfg.Server.Mode)

	// The scanner reads the ledger the API writes, so it needs the shared database.
	if cfg.Storage.Driver != "postgres" {
		log.Fatal().Str("storage", cfg.Storage.Driver).Msg("deposit scanner requires the postgres storage driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	m := metrics.New()
	explorer := tron.NewExplorer(cfg.Tron, &http.Client{Timeout: cfg.Tron.Timeout}, log)
	scanner := service.NewDepositScanner(
		pgStorage.NewVaultRepo(pool),
		pgStorage.NewLedgerRepo(pool),
		explorer,
		cfg.Scanner.Lookback,
		m,
		log,
	)

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := scanner.Scan(runCtx); err != nil {
			log.Error().Err(err).Msg("deposit scan failed")
		}
	}

	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))
	if _, err := c.AddFunc(cfg.Scanner.Schedule, run); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Scanner.Schedule).Msg("invalid scanner schedule")
	}

	// Metrics and health are served on the configured port.
	router := gin.New()
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", httpHandler.HealthCheck(pgStorage.NewHealthCheck(pool), explorer))
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	log.Info().
		Str("schedule", cfg.Scanner.Schedule).
		Dur("lookback", cfg.Scanner.Lookback).
		Str("addr", addr).
		Msg("Starting deposit scanner")

	run()
	c.Start()

	<-ctx.Done()
	log.Info().Msg("Shutting down scanner...")

	// Wait for a scan in flight before closing the pool.
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
	}

	log.Info().Msg("Scanner exited")
}
