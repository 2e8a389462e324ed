package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/emrmusicgroup/tape16-api/api/responses"
	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
)

type checkoutCreator interface {
	CreateCheckoutSession(ctx context.Context, successURL, cancelURL string) (*stripe.CheckoutSession, error)
}

type createCheckoutRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type createCheckoutResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
	ID  string `json:"id"`
}

// CreateCheckoutSession starts a hosted checkout for the single product
// this service sells. The body is optional; absent or malformed JSON
// falls back to the configured site origin for redirect URLs.
func CreateCheckoutSession(client checkoutCreator, publicOrigin string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		var payload createCheckoutRequest
		if body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16)); err == nil && len(body) > 0 {
			_ = json.Unmarshal(body, &payload)
		}

		base := strings.TrimRight(publicOrigin, "/")
		successURL := strings.TrimSpace(payload.SuccessURL)
		if successURL == "" {
			successURL = base + "/tape16/?checkout=success"
		}
		cancelURL := strings.TrimSpace(payload.CancelURL)
		if cancelURL == "" {
			cancelURL = base + "/tape16/?checkout=cancel"
		}

		sess, err := client.CreateCheckoutSession(ctx, successURL, cancelURL)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, createCheckoutResponse{
			OK:  true,
			URL: sess.URL,
			ID:  sess.ID,
		})
	}
}
