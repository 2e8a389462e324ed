package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/emrmusicgroup/tape16-api/api/responses"
	stripewebhook "github.com/emrmusicgroup/tape16-api/internal/webhooks/stripe"
	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	pkgstripe "github.com/emrmusicgroup/tape16-api/pkg/stripe"
)

type stripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type signingClient interface {
	SigningSecret() string
}

type checkoutProcessedResponse struct {
	OK          bool   `json:"ok"`
	Issued      bool   `json:"issued"`
	OrderID     string `json:"orderId"`
	EmailQueued bool   `json:"emailQueued"`
}

type revocationProcessedResponse struct {
	OK      bool   `json:"ok"`
	Revoked bool   `json:"revoked"`
	OrderID string `json:"orderId"`
}

type ignoredEventResponse struct {
	OK        bool   `json:"ok"`
	Ignored   bool   `json:"ignored"`
	EventType string `json:"eventType"`
}

// StripeWebhook verifies and dispatches Stripe event deliveries.
// Verification happens on the raw body before any parsing; an event
// that fails it never reaches the engines.
func StripeWebhook(svc stripeWebhookService, client signingClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		secret := client.SigningSecret()
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnconfigured, "webhook signing secret not configured"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "read request body"))
			return
		}

		if !pkgstripe.VerifySignature(payload, r.Header.Get("Stripe-Signature"), secret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "Invalid signature"))
			return
		}

		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "Invalid JSON payload"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !outcome.Handled {
			responses.WriteSuccess(w, ignoredEventResponse{
				OK:        true,
				Ignored:   true,
				EventType: outcome.EventType,
			})
			return
		}

		switch event.Type {
		case stripe.EventTypeChargeRefunded, stripe.EventTypeRefundUpdated:
			responses.WriteSuccess(w, revocationProcessedResponse{
				OK:      true,
				Revoked: outcome.Revoked,
				OrderID: outcome.OrderID,
			})
		default:
			responses.WriteSuccess(w, checkoutProcessedResponse{
				OK:          true,
				Issued:      outcome.Issued,
				OrderID:     outcome.OrderID,
				EmailQueued: outcome.EmailQueued,
			})
		}
	}
}
