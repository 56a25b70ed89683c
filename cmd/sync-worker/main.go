package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/worker"
)

func main() {
	logger, cfg := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting sync-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Remote == backend.NoRemote {
		logger.Error("REMOTE_BACKEND must name a remote store for the sync worker")
		os.Exit(1)
	}
	// the consumer opens its own connection below
	backendCfg.AMQPURL = ""

	backends, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backends", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		backends.Close()
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(backends.Store, backends.Remote, cloudsync.Config{
		AppVersion: cfg.AppVersion,
		Platform:   cfg.Platform,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := backends.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		if err := amqpClient.ConsumeKeyChanged(ctx, syncWorker.HandleKeyChanged); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	// Periodic catch-up for users whose mirror failed
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.CatchUp(ctx); err != nil {
					logger.Error("Periodic sync failed", log.FieldError, err)
				}
			}
		}
	}()

	logger.Info("Sync worker running",
		"queue", cfg.AMQPQueue,
		"remote_backend", cfg.RemoteBackend,
		"sync_interval", cfg.SyncInterval.String())
	cli.WaitForShutdown(ctx, done)
	logger.Info("Sync worker stopped")
}
