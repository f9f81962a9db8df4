package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tech4loop/marketplace-backend/api/controllers"
	webhookcontrollers "github.com/tech4loop/marketplace-backend/api/controllers/webhooks"
	"github.com/tech4loop/marketplace-backend/api/middleware"
	checkoutsvc "github.com/tech4loop/marketplace-backend/internal/checkout"
	"github.com/tech4loop/marketplace-backend/internal/payments"
	products "github.com/tech4loop/marketplace-backend/internal/products"
	"github.com/tech4loop/marketplace-backend/internal/reconciliation"
	"github.com/tech4loop/marketplace-backend/pkg/config"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

type rateLimiter interface {
	controllers.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type reportBuilder interface {
	Build(ctx context.Context, r reconciliation.Range) ([]reconciliation.Row, error)
}

// Deps are the services the HTTP surface is built from.
type Deps struct {
	DB              controllers.Pinger
	Redis           rateLimiter
	Products        products.Service
	Checkout        checkoutsvc.Service
	Payments        payments.Service
	Reconciliation  reportBuilder
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	checkoutPolicy := middleware.RateLimitPolicy{
		Name:   "checkout",
		Window: cfg.RateLimit.CheckoutWindow,
		Limit:  cfg.RateLimit.CheckoutLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.With(middleware.RateLimit(checkoutPolicy, deps.Redis, logg)).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.Get("/checkout/callback", controllers.CheckoutCallback(deps.Payments, logg))
		r.Post("/webhooks/payments", webhookcontrollers.PaymentWebhook(deps.Payments, cfg.Webhook.SecretToken, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Get("/reconciliation", controllers.AdminReconciliation(deps.Reconciliation, logg))
	})

	return r
}
