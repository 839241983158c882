// Package main is the entry point of the store API server: accounts, dividends
// and snapshots persisted in SQLite behind a token-protected REST interface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/portfolio-sync/internal/config"
	"github.com/aristath/portfolio-sync/internal/database"
	"github.com/aristath/portfolio-sync/internal/reliability"
	"github.com/aristath/portfolio-sync/internal/scheduler"
	"github.com/aristath/portfolio-sync/internal/server"
	"github.com/aristath/portfolio-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Starting store API")

	// Ledger profile: store records are not re-fetchable
	storeDB, err := database.New(database.Config{
		Path:    cfg.Server.StoreDBPath,
		Profile: database.ProfileLedger,
		Name:    database.NameStore,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store database")
	}
	defer storeDB.Close()

	if err := storeDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate store database")
	}

	srv := server.New(server.Config{
		Log:     log,
		StoreDB: storeDB,
		Token:   cfg.StoreAPIToken,
		Port:    cfg.Server.Port,
	})

	sched := scheduler.New(log)
	if cfg.Server.MaintenanceSchedule != "" {
		job := reliability.NewMaintenanceJob(map[string]*database.DB{database.NameStore: storeDB}, log)
		if err := sched.AddJob(cfg.Server.MaintenanceSchedule, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule database maintenance")
		}
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sched.Stop()

	log.Info().Msg("Server stopped")
}
