package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/cloudsync"
	apphttp "budgetbuddy/internal/http"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/middleware/ratelimit"
	"budgetbuddy/internal/repository"
	"budgetbuddy/internal/services"
)

func main() {
	logger, cfg := cli.Bootstrap(log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backends, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backends", log.FieldError, err)
		os.Exit(1)
	}

	session := auth.NewSession()

	var bridge *cloudsync.Bridge
	if backends.Remote != nil {
		bridge = cloudsync.New(backends.Store, backends.Remote, session, cloudsync.Config{
			AppVersion: cfg.AppVersion,
			Platform:   cfg.Platform,
		})
	}

	// Writes are mirrored by the sync worker when AMQP is up, in-process otherwise.
	var opts []repository.Option
	var publisher *services.PublishingNotifier
	switch {
	case backends.Publisher != nil:
		publisher = services.NewPublishingNotifier(backends.Publisher, session)
		opts = append(opts, repository.WithNotifier(publisher))
	case bridge != nil:
		opts = append(opts, repository.WithNotifier(bridge))
	}
	repo := repository.New(backends.Store, opts...)

	loc := cfg.Location()
	ledger := services.NewLedger(repo, services.Config{
		Location:        loc,
		SearchDebounce:  cfg.SearchDebounce,
		ReportCacheSize: cfg.ReportCacheSize,
		ReportCacheTTL:  cfg.ReportCacheTTL,
	})
	if err := ledger.Refresh(context.Background()); err != nil {
		logger.Error("Failed to load ledger", log.FieldError, err, log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}
	state := ledger.Snapshot()
	logger.Info("Ledger loaded",
		log.FieldCount, len(state.Records),
		"rejected", state.Rejected)

	janitor := cache.NewJanitor()
	janitor.Register(ledger.Reports())
	if cfg.ReportCacheTTL > 0 {
		janitor.Start(cfg.ReportCacheTTL)
	}

	deps := apphttp.Deps{
		Ledger:   ledger,
		Session:  session,
		Location: loc,
	}
	if cfg.JWTSecret != "" {
		deps.Tokens = auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	} else {
		logger.Warn("JWT_SECRET not set, sign-in is disabled")
	}
	if bridge != nil {
		deps.Sync = bridge
	}
	if cfg.RateLimitPerMinute > 0 {
		deps.Limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		janitor.Stop()
		if publisher != nil {
			publisher.Wait()
		}
		ledger.Close()
		if err := backends.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting budgetbuddy server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"remote_backend", cfg.RemoteBackend,
		"amqp", backends.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
