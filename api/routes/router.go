package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront/api/controllers/cart"
	catalogcontrollers "github.com/angelmondragon/storefront/api/controllers/catalog"
	checkoutcontrollers "github.com/angelmondragon/storefront/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/storefront/api/controllers/orders"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

// IdentityStore is the request-bound cart identity, read by handlers and
// bound to each request by middleware.
type IdentityStore interface {
	identity.Store
	Bind(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context
}

// Commerce is the commerce client surface the routes use directly.
type Commerce interface {
	catalogcontrollers.Catalog
	cartcontrollers.CartFetcher
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Identity    IdentityStore
	Engine      cartcontrollers.Engine
	Commerce    Commerce
	Checkout    checkoutcontrollers.Service
	Orders      orders.Service
	Idempotency pkgredis.IdempotencyStore
	RateLimiter middleware.WindowLimiter
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, deps.Ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.CartIdentity(deps.Identity))
		idempotent := middleware.Idempotency(deps.Idempotency, deps.Identity, logg)

		r.Get("/api/cart/get", cartcontrollers.CartGetByCookie(deps.Identity, deps.Commerce, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartGet(deps.Engine, logg))
			r.Delete("/", cartcontrollers.CartClear(deps.Engine, logg))
			r.With(idempotent).Post("/items", cartcontrollers.CartAddItem(deps.Engine, deps.Commerce, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(deps.Engine, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(deps.Engine, logg))
			r.With(middleware.CartRateLimit(refreshPolicy(cfg), deps.RateLimiter, deps.Identity, logg)).
				Post("/refresh", cartcontrollers.CartRefresh(deps.Engine, logg))
			r.Get("/events", cartcontrollers.CartEvents(deps.Engine, logg))
		})

		r.Route("/api/v1/checkout", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.CheckoutState(deps.Checkout, logg))
			r.Post("/delivery", checkoutcontrollers.CheckoutDelivery(deps.Checkout, logg))
			r.Post("/advance", checkoutcontrollers.CheckoutAdvance(deps.Checkout, logg))
			r.Post("/back", checkoutcontrollers.CheckoutBack(deps.Checkout, logg))
			r.Get("/review", checkoutcontrollers.CheckoutReview(deps.Checkout, logg))
			r.With(idempotent).Post("/submit", checkoutcontrollers.CheckoutSubmit(deps.Checkout, logg))
		})
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", catalogcontrollers.ListProducts(deps.Commerce, logg))
		r.Get("/products/{productId}", catalogcontrollers.GetProduct(deps.Commerce, logg))
		r.Get("/categories", catalogcontrollers.ListCategories(deps.Commerce, logg))
		r.Get("/categories/{categoryId}", catalogcontrollers.GetCategory(deps.Commerce, logg))
	})

	r.Get("/api/v1/orders/{orderId}/confirmation", ordercontrollers.OrderConfirmation(deps.Orders, logg))

	return r
}

func refreshPolicy(cfg *config.Config) middleware.RateLimitPolicy {
	return middleware.RateLimitPolicy{
		Name:   "cart_refresh",
		Limit:  cfg.Cart.RefreshLimit,
		Window: cfg.Cart.RefreshWindow,
	}
}
