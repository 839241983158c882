// Package main refreshes the earnings calendar asset from Stocktwits.
// One-shot unless EARNINGS_SCHEDULE is set.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/portfolio-sync/internal/assets"
	"github.com/aristath/portfolio-sync/internal/clientdata"
	"github.com/aristath/portfolio-sync/internal/clients/stocktwits"
	"github.com/aristath/portfolio-sync/internal/config"
	"github.com/aristath/portfolio-sync/internal/database"
	"github.com/aristath/portfolio-sync/internal/earnings"
	"github.com/aristath/portfolio-sync/internal/scheduler"
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

	if err := cfg.ValidateEarnings(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	publishers := []assets.Publisher{assets.NewFilePublisher(cfg.Earnings.OutputPath, log)}
	if s3cfg := cfg.Earnings.S3; s3cfg.Enabled() {
		s3pub, err := assets.NewS3Publisher(ctx, assets.S3Config{
			Bucket:          s3cfg.Bucket,
			Key:             s3cfg.Key,
			Endpoint:        s3cfg.Endpoint,
			Region:          s3cfg.Region,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to configure S3 publisher")
			return 1
		}
		publishers = append(publishers, s3pub)
	}

	source := stocktwits.NewClient(stocktwits.DefaultBaseURL, clientdata.NewRepository(cacheDB.Conn()), log)
	job := earnings.NewRefreshJob(source, log, publishers...)

	if cfg.Earnings.Schedule == "" {
		if err := job.Run(ctx); err != nil {
			return 1
		}
		return 0
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.Earnings.Schedule, job); err != nil {
		log.Error().Err(err).Msg("Failed to schedule earnings refresh")
		return 1
	}
	sched.Start()
	if err := sched.RunNow(job); err != nil {
		log.Warn().Err(err).Msg("Initial earnings refresh failed")
	}

	<-ctx.Done()
	sched.Stop()
	return 0
}
