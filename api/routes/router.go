package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emrmusicgroup/tape16-api/api/controllers"
	webhookcontrollers "github.com/emrmusicgroup/tape16-api/api/controllers/webhooks"
	"github.com/emrmusicgroup/tape16-api/api/middleware"
	"github.com/emrmusicgroup/tape16-api/api/responses"
	"github.com/emrmusicgroup/tape16-api/internal/issuance"
	stripewebhook "github.com/emrmusicgroup/tape16-api/internal/webhooks/stripe"
	"github.com/emrmusicgroup/tape16-api/pkg/config"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
	"github.com/emrmusicgroup/tape16-api/pkg/stripe"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
	StripeClient   *stripe.Client
	Issuance       *issuance.Service
	WebhookService *stripewebhook.Service
}

func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
		middleware.CORS(params.Config.CORS.AllowedOrigin),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteJSON(w, http.StatusNotFound, responses.ErrorEnvelope{OK: false, Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteJSON(w, http.StatusNotFound, responses.ErrorEnvelope{OK: false, Error: "Not found"})
	})
	// CORS preflights pass through the middleware so they can answer
	// 204 here instead of the router's 404 path.
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", controllers.Health(params.Config))

	r.Post("/stripe/webhook", webhookcontrollers.StripeWebhook(params.WebhookService, params.StripeClient, params.Logger))
	r.Post("/stripe/create-checkout-session", controllers.CreateCheckoutSession(params.StripeClient, params.Config.Site.PublicOrigin, params.Logger))
	r.Post("/resend-serial", controllers.ResendSerial(params.Issuance, params.Logger, params.Metrics))

	if params.Registry != nil {
		r.Get("/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}
