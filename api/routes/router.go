package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Dependencies carries everything the HTTP surface delegates to.
type Dependencies struct {
	DB              db.Pinger
	Redis           *redis.Client
	Orders          orders.Service
	Checkout        checkoutsvc.Builder
	StripeClient    *stripe.Client
	StripeWebhooks  webhookcontrollers.StripeWebhookService
	CheckoutMetrics *metrics.CheckoutMetrics
	Gatherer        prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "database", Pinger: deps.DB},
			controllers.Dependency{Name: "redis", Pinger: redisPinger(deps.Redis)},
		))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	stripeWebhook := webhookcontrollers.StripeWebhook(deps.StripeWebhooks, eventVerifier(deps.StripeClient), deps.CheckoutMetrics, logg)
	r.Post("/webhook-checkout", stripeWebhook)
	r.Post("/api/v1/webhooks/stripe", stripeWebhook)

	replay := middleware.Idempotency(replayStore(deps.Redis), logg)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/", ordercontrollers.List(deps.Orders, logg))
		r.Get("/checkout-session/{cartId}", ordercontrollers.CheckoutSession(deps.Checkout, logg))
		r.With(replay).Post("/checkout-session/{cartId}", ordercontrollers.CheckoutSession(deps.Checkout, logg))
		r.With(replay).Post("/{cartId}", ordercontrollers.CreateCashOrder(deps.Orders, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Put("/{orderId}/pay", ordercontrollers.MarkPaid(deps.Orders, logg))
			r.Put("/{orderId}/deliver", ordercontrollers.MarkDelivered(deps.Orders, logg))
		})
	})

	return r
}

// Typed nil pointers must not reach interface-typed consumers.
func redisPinger(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func replayStore(client *redis.Client) middleware.ReplayStore {
	if client == nil {
		return nil
	}
	return client
}

func eventVerifier(client *stripe.Client) webhookcontrollers.EventVerifier {
	if client == nil {
		return nil
	}
	return client
}
