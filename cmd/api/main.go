package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/mintaro-labs/mintaro-backend/api/routes"
	"github.com/mintaro-labs/mintaro-backend/internal/finalizer"
	"github.com/mintaro-labs/mintaro-backend/internal/listings"
	"github.com/mintaro-labs/mintaro-backend/pkg/config"
	"github.com/mintaro-labs/mintaro-backend/pkg/db"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/mintaro-labs/mintaro-backend/pkg/metrics"
	"github.com/mintaro-labs/mintaro-backend/pkg/migrate"
	"github.com/mintaro-labs/mintaro-backend/pkg/redis"
	"github.com/mintaro-labs/mintaro-backend/pkg/storage/pinning"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var pinner *pinning.Client
	if cfg.Pinning.APIKey != "" {
		pinner, err = pinning.NewClient(context.Background(), cfg.Pinning, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pinning client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "pinning credentials absent, media endpoints disabled")
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DBPing:   dbClient.Ping,
			Redis:    redisClient,
			Pinner:   pinner,
			Listings: listingService,
			Engine:   engine,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	go func() {
		logg.Info(ctx, "starting finalization engine")
		if runErr := engine.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logg.Error(ctx, "finalization engine stopped unexpectedly", runErr)
		}
	}()

	go func() {
		logg.Info(ctx, "starting api server")
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
