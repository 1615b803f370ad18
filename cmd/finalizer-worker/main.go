package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/mintaro-labs/mintaro-backend/internal/finalizer"
	"github.com/mintaro-labs/mintaro-backend/internal/listings"
	"github.com/mintaro-labs/mintaro-backend/pkg/config"
	"github.com/mintaro-labs/mintaro-backend/pkg/db"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/mintaro-labs/mintaro-backend/pkg/metrics"
	"github.com/mintaro-labs/mintaro-backend/pkg/migrate"
	"github.com/mintaro-labs/mintaro-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "finalizer-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "finalizer-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	listingService, err := listings.NewService(listings.ServiceParams{
		Repo:   listings.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create listing service", err)
		os.Exit(1)
	}

	lock, err := finalizer.NewRedisLock(redisClient, redisClient.LockKey("finalizer"), cfg.Finalizer.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create finalizer lock", err)
		os.Exit(1)
	}

	engine, err := finalizer.NewEngine(finalizer.EngineParams{
		Settler:     listingService,
		Logger:      logg,
		Metrics:     metrics.NewFinalizerMetrics(prometheus.DefaultRegisterer),
		Lock:        lock,
		Interval:    cfg.Finalizer.Interval,
		ItemTimeout: cfg.Finalizer.ItemTimeout,
		Concurrency: cfg.Finalizer.Concurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create finalization engine", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Finalizer.Interval.String(),
	})
	logg.Info(ctx, "starting finalizer worker")

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "finalizer worker stopped unexpectedly", err)
		os.Exit(1)
	}

	var closeErr error
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "finalizer worker shutting down gracefully")
}
