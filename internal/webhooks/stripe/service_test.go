package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/emrmusicgroup/tape16-api/internal/issuance"
	"github.com/emrmusicgroup/tape16-api/internal/ledger"
	"github.com/emrmusicgroup/tape16-api/internal/revocation"
)

type stubIssuer struct {
	order  *ledger.Order
	issued bool
	err    error
	inputs []issuance.IssueInput
}

func (s *stubIssuer) IssueOrReuse(ctx context.Context, input issuance.IssueInput) (*ledger.Order, bool, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, false, s.err
	}
	return s.order, s.issued, nil
}

type stubRevoker struct {
	result  revocation.Result
	err     error
	charges []*stripe.Charge
	refunds []*stripe.Refund
}

func (s *stubRevoker) HandleChargeRefunded(ctx context.Context, ch *stripe.Charge, eventType string) (revocation.Result, error) {
	s.charges = append(s.charges, ch)
	return s.result, s.err
}

func (s *stubRevoker) HandleRefundUpdated(ctx context.Context, re *stripe.Refund, eventType string) (revocation.Result, error) {
	s.refunds = append(s.refunds, re)
	return s.result, s.err
}

type stubDispatcher struct {
	queued []string
	result bool
}

func (s *stubDispatcher) Queue(ctx context.Context, to, serial, orderID string) bool {
	s.queued = append(s.queued, to)
	return s.result
}

func newService(t *testing.T, iss *stubIssuer, rev *stubRevoker, disp *stubDispatcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Issuer: iss, Revoker: rev, Notifier: disp})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func checkoutEvent(t *testing.T, eventType stripe.EventType, sess map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEvent_CheckoutCompletedIssues(t *testing.T) {
	iss := &stubIssuer{
		order: &ledger.Order{
			OrderID: "cs_1",
			Email:   "buyer@example.com",
			Serial:  "T16-AAAAAA-BBBBBB-CCCCCC",
		},
		issued: true,
	}
	disp := &stubDispatcher{result: true}
	svc := newService(t, iss, &stubRevoker{}, disp)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":               "cs_1",
		"customer_details": map[string]any{"email": "buyer@example.com"},
		"payment_intent":   map[string]any{"id": "pi_1"},
	})
	out, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !out.Handled || !out.Issued || out.OrderID != "cs_1" || !out.EmailQueued {
		t.Fatalf("unexpected outcome %+v", out)
	}

	if len(iss.inputs) != 1 {
		t.Fatalf("expected one issuance call")
	}
	input := iss.inputs[0]
	if input.OrderID != "cs_1" || input.Email != "buyer@example.com" {
		t.Fatalf("unexpected issuance input %+v", input)
	}
	if input.Source != "checkout.session.completed" {
		t.Fatalf("source should carry the event type, got %q", input.Source)
	}
	if input.PaymentReference != "pi_1" {
		t.Fatalf("payment reference not extracted: %+v", input)
	}
	if len(disp.queued) != 1 || disp.queued[0] != "buyer@example.com" {
		t.Fatalf("email not queued for buyer: %v", disp.queued)
	}
}

func TestHandleEvent_CustomerEmailFallback(t *testing.T) {
	iss := &stubIssuer{order: &ledger.Order{OrderID: "cs_1", Email: "buyer@example.com", Serial: "T16-AAAAAA-BBBBBB-CCCCCC"}}
	svc := newService(t, iss, &stubRevoker{}, &stubDispatcher{})

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, map[string]any{
		"id":             "cs_1",
		"customer_email": "fallback@example.com",
	})
	if _, err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if iss.inputs[0].Email != "fallback@example.com" {
		t.Fatalf("expected customer_email fallback, got %q", iss.inputs[0].Email)
	}
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	iss := &stubIssuer{}
	rev := &stubRevoker{}
	svc := newService(t, iss, rev, &stubDispatcher{})

	event := &stripe.Event{
		Type: stripe.EventType("invoice.paid"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	out, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unknown types must never error: %v", err)
	}
	if out.Handled {
		t.Fatalf("unknown type should be ignored: %+v", out)
	}
	if out.EventType != "invoice.paid" {
		t.Fatalf("outcome should echo the event type, got %q", out.EventType)
	}
	if len(iss.inputs) != 0 || len(rev.charges) != 0 || len(rev.refunds) != 0 {
		t.Fatalf("no engine should run for unknown types")
	}
}

func TestHandleEvent_UnknownTypeWithoutDataIgnored(t *testing.T) {
	iss := &stubIssuer{}
	rev := &stubRevoker{}
	svc := newService(t, iss, rev, &stubDispatcher{})

	// Stripe may deliver event shapes this service never parses; even a
	// missing data object must be acknowledged, not errored.
	out, err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventType("product.updated")})
	if err != nil {
		t.Fatalf("unknown types must never error: %v", err)
	}
	if out.Handled {
		t.Fatalf("unknown type should be ignored: %+v", out)
	}
	if out.EventType != "product.updated" {
		t.Fatalf("outcome should echo the event type, got %q", out.EventType)
	}
}

func TestHandleEvent_ChargeRefundedRoutesToRevoker(t *testing.T) {
	rev := &stubRevoker{result: revocation.Result{OrderID: "cs_1", Revoked: true}}
	svc := newService(t, &stubIssuer{}, rev, &stubDispatcher{})

	event := checkoutEvent(t, stripe.EventTypeChargeRefunded, map[string]any{
		"id":       "ch_1",
		"refunded": true,
	})
	out, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !out.Handled || !out.Revoked || out.OrderID != "cs_1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(rev.charges) != 1 || rev.charges[0].ID != "ch_1" {
		t.Fatalf("charge not routed: %+v", rev.charges)
	}
}

func TestHandleEvent_RefundForUnknownPurchaseIgnored(t *testing.T) {
	rev := &stubRevoker{result: revocation.Result{Ignored: true}}
	svc := newService(t, &stubIssuer{}, rev, &stubDispatcher{})

	event := checkoutEvent(t, stripe.EventTypeRefundUpdated, map[string]any{
		"id":     "re_1",
		"status": "succeeded",
	})
	out, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if out.Handled || out.Revoked {
		t.Fatalf("unmatched refund should read as ignored: %+v", out)
	}
}

func TestHandleEvent_EngineErrorPropagates(t *testing.T) {
	iss := &stubIssuer{err: errors.New("ledger write refused")}
	svc := newService(t, iss, &stubRevoker{}, &stubDispatcher{})

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_1",
		"customer_email": "buyer@example.com",
	})
	if _, err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatalf("issuance failure must fail the event for redelivery")
	}
}
