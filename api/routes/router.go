package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/belezaviva/belezaviva-backend/api/controllers"
	webhookcontrollers "github.com/belezaviva/belezaviva-backend/api/controllers/webhooks"
	"github.com/belezaviva/belezaviva-backend/api/middleware"
	cartsvc "github.com/belezaviva/belezaviva-backend/internal/cart"
	ordersvc "github.com/belezaviva/belezaviva-backend/internal/orders"
	paymentsvc "github.com/belezaviva/belezaviva-backend/internal/payments"
	productsvc "github.com/belezaviva/belezaviva-backend/internal/products"
	abacatewebhook "github.com/belezaviva/belezaviva-backend/internal/webhooks/abacatepay"
	"github.com/belezaviva/belezaviva-backend/pkg/config"
	"github.com/belezaviva/belezaviva-backend/pkg/db"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
	"github.com/belezaviva/belezaviva-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Payments paymentsvc.Service
	Orders   ordersvc.Service
	Cart     cartsvc.Service
	Products productsvc.Service
	Webhook  *abacatewebhook.Service
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/webhook/abacatepay", webhookcontrollers.AbacatePayWebhook(deps.Webhook, cfg.AbacatePay.WebhookSecret, logg))

	r.Route("/api", func(r chi.Router) {
		r.Route("/payment/abacatepay", func(r chi.Router) {
			r.Post("/create", controllers.PaymentCreate(deps.Payments, logg))
			r.Get("/status/{paymentId}", controllers.PaymentStatus(deps.Payments, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Get("/{orderId}/payments", controllers.OrderPayments(deps.Payments, logg))
		})

		r.Route("/cart/{customerId}", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Put("/", controllers.CartUpdate(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, logg))
			r.Get("/{productRef}", controllers.ProductDetail(deps.Products, logg))
		})
	})

	return r
}
