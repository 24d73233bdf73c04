package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/librariashqip/libraria-backend/api/controllers"
	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/internal/rentals"
	"github.com/librariashqip/libraria-backend/internal/settlement"
	"github.com/librariashqip/libraria-backend/internal/subscriptions"
	"github.com/librariashqip/libraria-backend/internal/terms"
	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/db"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/redis"
	"github.com/librariashqip/libraria-backend/pkg/storage/gcs"
)

// Deps bundles everything the router mounts. Health pingers and the metrics
// registry may be nil; the corresponding routes degrade rather than panic.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	GCS      gcs.Pinger
	Registry *prometheus.Registry

	Rentals       rentals.Service
	RentalFacade  rentals.Facade
	Settlements   settlement.Service
	Subscriptions subscriptions.Service
	Terms         terms.Service
	Audit         audit.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	accessPolicy := middleware.NewAccessRateLimitPolicy(
		"access",
		cfg.RateLimit.AccessWindow,
		int64(cfg.RateLimit.AccessIPLimit),
		int64(cfg.RateLimit.AccessBuyerLimit),
	)
	reportPolicy := middleware.NewAccessRateLimitPolicy(
		"report",
		cfg.RateLimit.ReportWindow,
		int64(cfg.RateLimit.ReportIPLimit),
		int64(cfg.RateLimit.ReportBuyerLimit),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis, d.GCS))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	// Redis-backed middleware drops out entirely when no client is wired,
	// instead of carrying a typed nil through the interface.
	idempotency := passthrough
	accessLimit := passthrough
	reportLimit := passthrough
	if d.Redis != nil {
		idempotency = middleware.Idempotency(d.Redis, logg)
		accessLimit = middleware.AccessRateLimit(accessPolicy, d.Redis, logg)
		reportLimit = middleware.AccessRateLimit(reportPolicy, d.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.BuyerIdentity(logg))
			r.Use(idempotency)

			r.Get("/ping", controllers.BuyerPing())

			r.Route("/rentals", func(r chi.Router) {
				r.Post("/", controllers.RentalCreate(d.Rentals, logg))
				r.With(accessLimit).Post("/access", controllers.RentalAccess(d.Rentals, logg))
				r.Get("/active", controllers.RentalActive(d.Rentals, logg))
				r.Get("/history", controllers.RentalHistory(d.Rentals, logg))
				r.Get("/contents/{contentID}/availability", controllers.ContentAvailability(d.RentalFacade, logg))
				r.Route("/{rentalID}", func(r chi.Router) {
					r.Post("/return", controllers.RentalReturn(d.Settlements, logg))
					r.Post("/cancel", controllers.RentalCancel(d.Rentals, logg))
					r.Post("/play", controllers.RentalPlaySession(d.Rentals, logg))
				})
			})

			r.Route("/subscriptions/access", func(r chi.Router) {
				r.Post("/acquire", controllers.SubscriptionAcquire(d.Subscriptions, logg))
				r.Post("/release", controllers.SubscriptionRelease(d.Subscriptions, logg))
				r.Get("/status", controllers.SubscriptionStatus(d.Subscriptions, logg))
			})

			r.Route("/terms", func(r chi.Router) {
				r.Get("/status", controllers.TermsStatus(d.Terms, logg))
				r.Post("/accept", controllers.TermsAccept(d.Terms, logg))
			})
		})

		// The violation reporter authenticates with its own key, not a
		// buyer identity.
		r.Group(func(r chi.Router) {
			r.Use(middleware.ReporterAuth(cfg.Reporter, logg))
			r.With(reportLimit).Post("/violations", controllers.ViolationReport(d.Audit, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
