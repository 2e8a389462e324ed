package issuance

import (
	"context"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/emrmusicgroup/tape16-api/internal/ledger"
	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
	"github.com/emrmusicgroup/tape16-api/pkg/serial"
	pkgstripe "github.com/emrmusicgroup/tape16-api/pkg/stripe"
)

// SourceManualRecovery tags orders minted by the recovery path rather
// than a webhook delivery.
const SourceManualRecovery = "manual_recovery"

type orderLedger interface {
	GetOrder(ctx context.Context, orderID string) (*ledger.Order, error)
	CreateOrder(ctx context.Context, order *ledger.Order) (bool, *ledger.Order, error)
	IndexPaymentRef(ctx context.Context, ref, orderID string) error
}

type processorClient interface {
	HasAPIKey() bool
	RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type dispatcher interface {
	Queue(ctx context.Context, to, serial, orderID string) bool
}

// Service owns the order-creation state machine: mint exactly one serial
// per completed purchase, reuse on repeat deliveries, and heal missed
// webhooks from the processor's own record.
type Service struct {
	ledger    orderLedger
	processor processorClient
	notify    dispatcher
	logg      *logger.Logger
	mets      *metrics.Metrics
	newSerial func() (string, error)
	now       func() time.Time
}

type ServiceParams struct {
	Ledger    orderLedger
	Processor processorClient
	Notifier  dispatcher
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
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	return &Service{
		ledger:    params.Ledger,
		processor: params.Processor,
		notify:    params.Notifier,
		logg:      params.Logger,
		mets:      params.Metrics,
		newSerial: serial.Generate,
		now:       time.Now,
	}, nil
}

// IssueInput names a purchase the engine should hold a serial for.
type IssueInput struct {
	OrderID          string
	Email            string
	Source           string
	PaymentReference string
}

// IssueOrReuse behaves as an idempotent upsert keyed by order id:
// repeated calls converge to the same stored serial no matter the call
// order or retries. The returned bool reports whether this call minted
// the record.
func (s *Service) IssueOrReuse(ctx context.Context, input IssueInput) (*ledger.Order, bool, error) {
	orderID := strings.TrimSpace(input.OrderID)
	email := NormalizeEmail(input.Email)
	if orderID == "" || email == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeInvalidInput, "missing order id or customer email")
	}

	existing, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.indexPaymentRef(ctx, input.PaymentReference, orderID)
		return existing, false, nil
	}

	newSerial, err := s.newSerial()
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate serial")
	}
	order := &ledger.Order{
		OrderID:          orderID,
		Email:            email,
		Serial:           newSerial,
		PaymentReference: strings.TrimSpace(input.PaymentReference),
		Source:           input.Source,
		CreatedAt:        s.now().UTC(),
	}
	created, stored, err := s.ledger.CreateOrder(ctx, order)
	if err != nil {
		return nil, false, err
	}
	s.indexPaymentRef(ctx, input.PaymentReference, orderID)
	if created {
		s.mets.IncSerialIssued()
		if s.logg != nil {
			s.logg.Info(s.logg.WithOrderID(ctx, orderID), "serial issued")
		}
	}
	return stored, created, nil
}

// ResendSerial is the self-service path. Whatever it finds, the caller
// answers with one fixed message; only the email-dispatch decision
// differs, so an unauthenticated caller cannot probe purchase existence,
// ownership, or revocation. Returns whether a notification was queued.
func (s *Service) ResendSerial(ctx context.Context, orderID, email string) (bool, error) {
	orderID = strings.TrimSpace(orderID)
	email = NormalizeEmail(email)
	if orderID == "" || email == "" {
		return false, pkgerrors.New(pkgerrors.CodeInvalidInput, "orderId and email are required")
	}

	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order == nil && s.processor.HasAPIKey() {
		order = s.recoverFromStripe(ctx, orderID)
	}
	if order == nil {
		return false, nil
	}
	if order.Revoked {
		return false, nil
	}
	if NormalizeEmail(order.Email) != email {
		return false, nil
	}
	return s.notify.Queue(ctx, order.Email, order.Serial, order.OrderID), nil
}

// recoverFromStripe queries the processor for an order the ledger does
// not know, healing a missed webhook delivery. Any upstream trouble
// reads as "no recovery": the resend response must stay generic.
func (s *Service) recoverFromStripe(ctx context.Context, orderID string) *ledger.Order {
	sess, err := s.processor.RetrieveCheckoutSession(ctx, orderID)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID), "order recovery lookup failed: "+err.Error())
		}
		return nil
	}
	if sess == nil {
		return nil
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.Status != stripe.CheckoutSessionStatusComplete {
		return nil
	}
	email := NormalizeEmail(pkgstripe.SessionEmail(sess))
	if email == "" {
		return nil
	}
	order, _, err := s.IssueOrReuse(ctx, IssueInput{
		OrderID:          sess.ID,
		Email:            email,
		Source:           SourceManualRecovery,
		PaymentReference: pkgstripe.SessionPaymentReference(sess),
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, orderID), "order recovery failed", err)
		}
		return nil
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.OrderID), "order recovered from processor")
	}
	return order
}

func (s *Service) indexPaymentRef(ctx context.Context, ref, orderID string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return
	}
	if err := s.ledger.IndexPaymentRef(ctx, ref, orderID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID), "payment reference index write failed: "+err.Error())
	}
}

// NormalizeEmail lower-cases and trims an address, returning "" unless
// it looks like an email at all.
func NormalizeEmail(value string) string {
	out := strings.ToLower(strings.TrimSpace(value))
	if !strings.Contains(out, "@") {
		return ""
	}
	return out
}
