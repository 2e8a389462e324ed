package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/emrmusicgroup/tape16-api/internal/issuance"
	"github.com/emrmusicgroup/tape16-api/internal/ledger"
	"github.com/emrmusicgroup/tape16-api/internal/revocation"
	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
	pkgstripe "github.com/emrmusicgroup/tape16-api/pkg/stripe"
)

type issuer interface {
	IssueOrReuse(ctx context.Context, input issuance.IssueInput) (*ledger.Order, bool, error)
}

type revoker interface {
	HandleChargeRefunded(ctx context.Context, ch *stripe.Charge, eventType string) (revocation.Result, error)
	HandleRefundUpdated(ctx context.Context, re *stripe.Refund, eventType string) (revocation.Result, error)
}

type dispatcher interface {
	Queue(ctx context.Context, to, serial, orderID string) bool
}

// Outcome describes what a webhook event did, shaped for the HTTP
// response.
type Outcome struct {
	EventType string
	// Handled is false for event types this service does not consume;
	// those are acknowledged and dropped, never errored, so the
	// processor does not redeliver them forever.
	Handled     bool
	Issued      bool
	Revoked     bool
	OrderID     string
	EmailQueued bool
}

// Service routes verified payment events to the issuance and revocation
// engines.
type Service struct {
	issuer  issuer
	revoker revoker
	notify  dispatcher
	logg    *logger.Logger
	mets    *metrics.Metrics
}

type ServiceParams struct {
	Issuer   issuer
	Revoker  revoker
	Notifier dispatcher
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Issuer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "issuance service required")
	}
	if params.Revoker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "revocation service required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	return &Service{
		issuer:  params.Issuer,
		revoker: params.Revoker,
		notify:  params.Notifier,
		logg:    params.Logger,
		mets:    params.Metrics,
	}, nil
}

// HandleEvent dispatches one verified event. Only the handful of event
// shapes this system consumes are typed; everything else takes the
// ignored branch untouched, whatever its payload looks like.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "event required")
	}
	eventType := string(event.Type)
	ctx = s.withEventType(ctx, eventType)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		if event.Data == nil {
			return Outcome{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "event data required")
		}
		return s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeChargeRefunded:
		if event.Data == nil {
			return Outcome{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "event data required")
		}
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "decode charge event")
		}
		res, err := s.revoker.HandleChargeRefunded(ctx, &ch, eventType)
		return s.revocationOutcome(ctx, eventType, res, err)
	case stripe.EventTypeRefundUpdated:
		if event.Data == nil {
			return Outcome{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "event data required")
		}
		var re stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &re); err != nil {
			return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "decode refund event")
		}
		res, err := s.revoker.HandleRefundUpdated(ctx, &re, eventType)
		return s.revocationOutcome(ctx, eventType, res, err)
	default:
		s.mets.IncWebhookEvent(eventType, "ignored")
		return Outcome{EventType: eventType}, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (Outcome, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "decode checkout session event")
	}

	eventType := string(event.Type)
	order, issued, err := s.issuer.IssueOrReuse(ctx, issuance.IssueInput{
		OrderID:          sess.ID,
		Email:            pkgstripe.SessionEmail(&sess),
		Source:           eventType,
		PaymentReference: pkgstripe.SessionPaymentReference(&sess),
	})
	if err != nil {
		s.mets.IncWebhookEvent(eventType, "failed")
		return Outcome{}, err
	}

	queued := s.notify.Queue(ctx, order.Email, order.Serial, order.OrderID)
	s.mets.IncWebhookEvent(eventType, "processed")
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.OrderID, "issued": issued})
		s.logg.Info(logCtx, "checkout session processed")
	}
	return Outcome{
		EventType:   eventType,
		Handled:     true,
		Issued:      issued,
		OrderID:     order.OrderID,
		EmailQueued: queued,
	}, nil
}

func (s *Service) revocationOutcome(ctx context.Context, eventType string, res revocation.Result, err error) (Outcome, error) {
	if err != nil {
		s.mets.IncWebhookEvent(eventType, "failed")
		return Outcome{}, err
	}
	if res.Ignored {
		s.mets.IncWebhookEvent(eventType, "ignored")
		return Outcome{EventType: eventType}, nil
	}
	s.mets.IncWebhookEvent(eventType, "processed")
	return Outcome{
		EventType: eventType,
		Handled:   true,
		Revoked:   res.Revoked,
		OrderID:   res.OrderID,
	}, nil
}

func (s *Service) withEventType(ctx context.Context, eventType string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithEventType(ctx, eventType)
}
