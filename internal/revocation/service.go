package revocation

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/emrmusicgroup/tape16-api/internal/ledger"
	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
)

type orderLedger interface {
	GetOrder(ctx context.Context, orderID string) (*ledger.Order, error)
	UpdateOrder(ctx context.Context, order *ledger.Order) error
	OrderIDByPaymentRef(ctx context.Context, ref string) (string, error)
}

type processorClient interface {
	HasAPIKey() bool
	RetrieveCharge(ctx context.Context, id string) (*stripe.Charge, error)
}

// Result reports what a refund event did to the ledger.
type Result struct {
	OrderID string
	// Revoked is true only when this call flipped the order. A repeat
	// delivery finds the order already revoked and reports false with
	// the order id still set.
	Revoked bool
	// Ignored means the event matched no order or was not a terminal
	// refund. Never an error: the processor may well know purchases we
	// do not.
	Ignored bool
}

// Service flips orders to the revoked state on verified refund events.
// Revocation never deletes anything; the flagged record stays for
// downstream validation to refuse.
type Service struct {
	ledger    orderLedger
	processor processorClient
	logg      *logger.Logger
	mets      *metrics.Metrics
	now       func() time.Time
}

type ServiceParams struct {
	Ledger    orderLedger
	Processor processorClient
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "processor client required")
	}
	return &Service{
		ledger:    params.Ledger,
		processor: params.Processor,
		logg:      params.Logger,
		mets:      params.Metrics,
		now:       time.Now,
	}, nil
}

// HandleChargeRefunded processes a charge-level refund event: revoke
// when the charge reports any refunded amount or the refunded flag.
func (s *Service) HandleChargeRefunded(ctx context.Context, ch *stripe.Charge, eventType string) (Result, error) {
	if ch == nil {
		return Result{Ignored: true}, nil
	}
	if !ch.Refunded && ch.AmountRefunded == 0 {
		return Result{Ignored: true}, nil
	}
	return s.resolveAndRevoke(ctx, chargePaymentReference(ch), ch.ID, eventType)
}

// HandleRefundUpdated processes a refund-object event. Only a refund
// that reached the terminal succeeded state revokes; pending or failed
// refunds leave the order alone.
func (s *Service) HandleRefundUpdated(ctx context.Context, re *stripe.Refund, eventType string) (Result, error) {
	if re == nil {
		return Result{Ignored: true}, nil
	}
	if re.Status != stripe.RefundStatusSucceeded {
		return Result{Ignored: true}, nil
	}
	var chargeID string
	if re.Charge != nil {
		chargeID = re.Charge.ID
	}
	var paymentRef string
	if re.PaymentIntent != nil {
		paymentRef = re.PaymentIntent.ID
	}
	return s.resolveAndRevoke(ctx, paymentRef, chargeID, eventType)
}

// resolveAndRevoke finds the affected order via the payment reference,
// falling back to a charge lookup against the processor, then applies
// the one-way revoke flip.
func (s *Service) resolveAndRevoke(ctx context.Context, paymentRef, chargeID, reason string) (Result, error) {
	if paymentRef == "" {
		if chargeID == "" {
			return Result{Ignored: true}, nil
		}
		if !s.processor.HasAPIKey() {
			if s.logg != nil {
				s.logg.Warn(ctx, "refund carries only a charge id and no processor credentials are set; ignoring")
			}
			return Result{Ignored: true}, nil
		}
		ch, err := s.processor.RetrieveCharge(ctx, chargeID)
		if err != nil {
			return Result{}, err
		}
		paymentRef = chargePaymentReference(ch)
		if paymentRef == "" {
			return Result{Ignored: true}, nil
		}
	}

	orderID, err := s.ledger.OrderIDByPaymentRef(ctx, paymentRef)
	if err != nil {
		return Result{}, err
	}
	if orderID == "" {
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "payment_ref", paymentRef), "refund for unknown purchase ignored")
		}
		return Result{Ignored: true}, nil
	}

	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	if order == nil {
		return Result{Ignored: true}, nil
	}

	if !order.Revoke(reason, s.now().UTC()) {
		return Result{OrderID: order.OrderID}, nil
	}
	if err := s.ledger.UpdateOrder(ctx, order); err != nil {
		return Result{}, err
	}
	s.mets.IncRevocation()
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.OrderID), "serial revoked")
	}
	return Result{OrderID: order.OrderID, Revoked: true}, nil
}

func chargePaymentReference(ch *stripe.Charge) string {
	if ch == nil || ch.PaymentIntent == nil {
		return ""
	}
	return ch.PaymentIntent.ID
}
