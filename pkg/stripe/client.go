package stripe

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/charge"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
)

// Client wraps the Stripe API surface this service consumes: checkout
// session create/retrieve, charge retrieve, and the webhook signing
// secret. It is constructible without credentials; every call that needs
// a missing credential reports UNCONFIGURED instead of failing at boot,
// so a partially configured deploy still serves the routes it can.
type Client struct {
	apiKey        string
	signingSecret string
	priceID       string
}

// NewClient initializes Stripe once with whatever credentials are set.
func NewClient(apiKey, signingSecret, priceID string) *Client {
	key := strings.TrimSpace(apiKey)
	if key != "" {
		stripe.Key = key
	}
	return &Client{
		apiKey:        key,
		signingSecret: strings.TrimSpace(signingSecret),
		priceID:       strings.TrimSpace(priceID),
	}
}

// SigningSecret returns the webhook signing secret, empty when unset.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// HasAPIKey reports whether REST lookups against Stripe are possible.
func (c *Client) HasAPIKey() bool {
	return c != nil && c.apiKey != ""
}

// RetrieveCheckoutSession fetches a checkout session by id.
func (c *Client) RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if !c.HasAPIKey() {
		return nil, pkgerrors.New(pkgerrors.CodeUnconfigured, "stripe api key missing")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(id, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "fetch checkout session")
	}
	return sess, nil
}

// RetrieveCharge fetches a charge by id, used to resolve the payment
// reference carried by refund events that omit it.
func (c *Client) RetrieveCharge(ctx context.Context, id string) (*stripe.Charge, error) {
	if !c.HasAPIKey() {
		return nil, pkgerrors.New(pkgerrors.CodeUnconfigured, "stripe api key missing")
	}
	params := &stripe.ChargeParams{}
	params.Context = ctx
	ch, err := charge.Get(id, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "fetch charge")
	}
	return ch, nil
}

// CreateCheckoutSession starts a single-item payment-mode checkout for
// the configured price.
func (c *Client) CreateCheckoutSession(ctx context.Context, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	if !c.HasAPIKey() || c.priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnconfigured, "stripe api key or price id missing")
	}
	params := checkoutSessionParams(c.priceID, successURL, cancelURL)
	params.Context = ctx
	sess, err := session.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create checkout session")
	}
	return sess, nil
}

// checkoutSessionParams builds the fixed single-item payment-mode
// request: quantity one, no promotion codes, no tax id collection,
// customer created only when Stripe needs one.
func checkoutSessionParams(priceID, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	return &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes:      stripe.Bool(false),
		SuccessURL:               stripe.String(successURL),
		CancelURL:                stripe.String(cancelURL),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		CustomerCreation:         stripe.String(string(stripe.CheckoutSessionCustomerCreationIfRequired)),
		TaxIDCollection: &stripe.CheckoutSessionTaxIDCollectionParams{
			Enabled: stripe.Bool(false),
		},
	}
}

// SessionEmail extracts the buyer address from a checkout session,
// preferring the collected customer details.
func SessionEmail(sess *stripe.CheckoutSession) string {
	if sess == nil {
		return ""
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

// SessionPaymentReference returns the payment intent id tied to a
// checkout session, empty when Stripe did not attach one.
func SessionPaymentReference(sess *stripe.CheckoutSession) string {
	if sess == nil || sess.PaymentIntent == nil {
		return ""
	}
	return sess.PaymentIntent.ID
}
