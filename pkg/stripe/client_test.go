package stripe

import (
	"context"
	"testing"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
)

func TestCheckoutSessionParams(t *testing.T) {
	params := checkoutSessionParams("price_123", "https://example.com/ok", "https://example.com/back")

	if got := stripe.StringValue(params.Mode); got != "payment" {
		t.Fatalf("unexpected mode %q", got)
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(params.LineItems))
	}
	item := params.LineItems[0]
	if stripe.StringValue(item.Price) != "price_123" || stripe.Int64Value(item.Quantity) != 1 {
		t.Fatalf("unexpected line item %+v", item)
	}
	if stripe.BoolValue(params.AllowPromotionCodes) {
		t.Fatalf("promotion codes must be disabled")
	}
	if params.TaxIDCollection == nil || stripe.BoolValue(params.TaxIDCollection.Enabled) {
		t.Fatalf("tax id collection must be sent disabled")
	}
	if stripe.StringValue(params.SuccessURL) != "https://example.com/ok" {
		t.Fatalf("unexpected success url %q", stripe.StringValue(params.SuccessURL))
	}
	if stripe.StringValue(params.CancelURL) != "https://example.com/back" {
		t.Fatalf("unexpected cancel url %q", stripe.StringValue(params.CancelURL))
	}
	if stripe.StringValue(params.CustomerCreation) != "if_required" {
		t.Fatalf("unexpected customer creation %q", stripe.StringValue(params.CustomerCreation))
	}
	if stripe.StringValue(params.BillingAddressCollection) != "auto" {
		t.Fatalf("unexpected billing address collection %q", stripe.StringValue(params.BillingAddressCollection))
	}
}

func TestClientUnconfigured(t *testing.T) {
	client := NewClient("", "whsec_test", "")

	if client.HasAPIKey() {
		t.Fatalf("keyless client must report no api key")
	}
	if client.SigningSecret() != "whsec_test" {
		t.Fatalf("signing secret should survive without an api key")
	}

	checks := []func() error{
		func() error { _, err := client.RetrieveCheckoutSession(context.Background(), "cs_1"); return err },
		func() error { _, err := client.RetrieveCharge(context.Background(), "ch_1"); return err },
		func() error { _, err := client.CreateCheckoutSession(context.Background(), "https://a", "https://b"); return err },
	}
	for _, check := range checks {
		err := check()
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnconfigured {
			t.Fatalf("expected UNCONFIGURED, got %v", err)
		}
	}
}

func TestSessionEmail(t *testing.T) {
	if got := SessionEmail(nil); got != "" {
		t.Fatalf("nil session should yield empty email, got %q", got)
	}
	sess := &stripe.CheckoutSession{
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "details@example.com"},
		CustomerEmail:   "fallback@example.com",
	}
	if got := SessionEmail(sess); got != "details@example.com" {
		t.Fatalf("customer details should win, got %q", got)
	}
	sess.CustomerDetails = nil
	if got := SessionEmail(sess); got != "fallback@example.com" {
		t.Fatalf("expected customer_email fallback, got %q", got)
	}
}

func TestSessionPaymentReference(t *testing.T) {
	if got := SessionPaymentReference(&stripe.CheckoutSession{}); got != "" {
		t.Fatalf("missing payment intent should yield empty ref, got %q", got)
	}
	sess := &stripe.CheckoutSession{PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"}}
	if got := SessionPaymentReference(sess); got != "pi_1" {
		t.Fatalf("unexpected payment reference %q", got)
	}
}
