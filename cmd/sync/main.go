// Package main is the provider sync command. It pulls dividends and account
// snapshots from every account's brokerage and reconciles them into the store.
//
// Without SYNC_SCHEDULE it performs one pass and exits 0 on success, 1 otherwise.
// With SYNC_SCHEDULE set it keeps running and performs a pass on every tick.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/portfolio-sync/internal/clientdata"
	"github.com/aristath/portfolio-sync/internal/clients/exchangerate"
	"github.com/aristath/portfolio-sync/internal/clients/store"
	"github.com/aristath/portfolio-sync/internal/clients/trading212"
	"github.com/aristath/portfolio-sync/internal/config"
	"github.com/aristath/portfolio-sync/internal/database"
	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/providers"
	"github.com/aristath/portfolio-sync/internal/reliability"
	"github.com/aristath/portfolio-sync/internal/scheduler"
	"github.com/aristath/portfolio-sync/internal/work"
	"github.com/aristath/portfolio-sync/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := cfg.ValidateSync(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}
	if cfg.Sync.Schedule != "" {
		if err := scheduler.ValidateSchedule(cfg.Sync.Schedule); err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return 1
		}
	}

	cacheDB, err := database.New(database.Config{
		Path:    cfg.ClientDataDBPath(),
		Profile: database.ProfileCache,
		Name:    database.NameClientData,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to open client data database")
		return 1
	}
	defer cacheDB.Close()
	if err := cacheDB.Migrate(); err != nil {
		log.Error().Err(err).Msg("Failed to migrate client data database")
		return 1
	}
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())

	factory := providers.NewFactory()
	factory.Register(domain.ProviderTrading212, trading212.NewConstructor(log,
		trading212.WithBaseURL(cfg.Trading212BaseURL),
		trading212.WithInstrumentCache(cacheRepo),
	))

	storeClient := store.NewClient(cfg.StoreAPIURL, cfg.StoreAPIToken, log)
	runner := work.NewRunner(storeClient, factory, work.Options{
		Concurrency:            cfg.Sync.Concurrency,
		ContinueOnAccountError: cfg.Sync.ContinueOnAccountError,
		StrictMetadataOrdering: cfg.Sync.StrictMetadataOrdering,
	}, log)
	runner.SetRateSource(exchangerate.NewClient(cfg.ExchangeRateAPIKey, cfg.ExchangeRateAPIURL, cacheRepo, log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.Schedule == "" {
		if _, err := runner.Run(ctx); err != nil {
			return 1
		}
		return 0
	}

	sched := scheduler.New(log)
	syncJob := scheduler.JobFunc{
		JobName: "provider_sync",
		Fn: func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		},
	}
	if err := sched.AddJob(cfg.Sync.Schedule, syncJob); err != nil {
		log.Error().Err(err).Msg("Failed to schedule sync")
		return 1
	}
	if err := sched.AddJob("@daily", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Error().Err(err).Msg("Failed to schedule client data cleanup")
		return 1
	}
	maintenance := reliability.NewMaintenanceJob(map[string]*database.DB{database.NameClientData: cacheDB}, log)
	if err := sched.AddJob("@weekly", maintenance); err != nil {
		log.Error().Err(err).Msg("Failed to schedule database maintenance")
		return 1
	}

	sched.Start()
	log.Info().Str("schedule", cfg.Sync.Schedule).Msg("Sync daemon started")

	<-ctx.Done()
	log.Info().Msg("Shutting down sync daemon")
	sched.Stop()
	return 0
}
