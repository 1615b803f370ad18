package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mintaro-labs/mintaro-backend/api/controllers"
	"github.com/mintaro-labs/mintaro-backend/api/middleware"
	"github.com/mintaro-labs/mintaro-backend/internal/finalizer"
	"github.com/mintaro-labs/mintaro-backend/internal/listings"
	"github.com/mintaro-labs/mintaro-backend/pkg/config"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	pkgredis "github.com/mintaro-labs/mintaro-backend/pkg/redis"
	"github.com/mintaro-labs/mintaro-backend/pkg/storage/pinning"
)

// RouterParams carries everything the HTTP surface depends on. Pingers
// are optional; a nil entry is skipped by the readiness probe.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DBPing   func(context.Context) error
	Redis    *pkgredis.Client
	Pinner   *pinning.Client
	Listings listings.Service
	Engine   *finalizer.Engine
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]func(context.Context) error{
		"database": params.DBPing,
	}
	if params.Redis != nil {
		readiness["redis"] = params.Redis.Ping
	}
	if params.Pinner != nil {
		readiness["pinning"] = params.Pinner.Ping
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	var idemStore pkgredis.IdempotencyStore
	var rlStore pkgredis.RateLimitStore
	if params.Redis != nil {
		idemStore = params.Redis
		rlStore = params.Redis
	}

	rlPolicy := middleware.NewRateLimitPolicy("mutations", cfg.RateLimit.Window, cfg.RateLimit.PerIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.RateLimit(rlPolicy, rlStore, logg),
			middleware.Idempotency(idemStore, logg),
		)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", controllers.ListListings(params.Listings, logg))
			r.Post("/", controllers.MintListing(params.Listings, logg))
			r.Get("/finalized", controllers.ListFinalizedListings(params.Listings, logg))
			r.Get("/stats", controllers.MarketStats(params.Listings, logg))

			r.Route("/{tokenID}", func(r chi.Router) {
				r.Get("/", controllers.GetListing(params.Listings, logg))
				r.Post("/sale", controllers.SetListingForSale(params.Listings, logg))
				r.Delete("/sale", controllers.DelistListingFromSale(params.Listings, logg))
				r.Post("/rent", controllers.SetListingForRent(params.Listings, logg))
				r.Delete("/rent", controllers.DelistListingFromRent(params.Listings, logg))
				r.Post("/rentals", controllers.StartListingRental(params.Listings, logg))
				r.Post("/like", controllers.LikeListing(params.Listings, logg))
				r.Post("/dislike", controllers.DislikeListing(params.Listings, logg))
				r.Post("/purchase", controllers.PurchaseListing(params.Listings, logg))
			})
		})

		r.Route("/media", func(r chi.Router) {
			r.Post("/pin", controllers.PinListingAsset(params.Pinner, logg))
			r.Post("/pin-json", controllers.PinListingMetadata(params.Pinner, logg))
		})

		r.Route("/finalizer", func(r chi.Router) {
			r.Get("/status", controllers.FinalizerStatus(params.Engine, logg))
			r.Get("/statistics", controllers.FinalizerStatistics(params.Engine, logg))
			r.Post("/runs", controllers.FinalizerTrigger(params.Engine, logg))
		})
	})

	return r
}
