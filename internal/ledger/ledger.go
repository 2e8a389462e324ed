package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
	"github.com/emrmusicgroup/tape16-api/pkg/redis"
)

// Order is the durable record of one completed purchase. OrderID, Email,
// Serial, Source and CreatedAt are immutable after creation; only the
// revocation fields ever change, and Revoked moves false to true exactly
// once.
type Order struct {
	OrderID          string     `json:"orderId"`
	Email            string     `json:"email"`
	Serial           string     `json:"serial"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	Source           string     `json:"source"`
	Revoked          bool       `json:"revoked"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	RevokedReason    string     `json:"revokedReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Revoke flips the order to the revoked state. It reports false when the
// order was already revoked, in which case nothing changes.
func (o *Order) Revoke(reason string, at time.Time) bool {
	if o.Revoked {
		return false
	}
	o.Revoked = true
	o.RevokedAt = &at
	o.RevokedReason = reason
	return true
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	OrderKey(orderID string) string
	PaymentRefKey(ref string) string
}

// Ledger reads and writes order records and the payment-reference index
// in the backing key-value store. Records carry no TTL; orders are kept
// for lookup and audit indefinitely.
type Ledger struct {
	store kvStore
}

func New(store kvStore) (*Ledger, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger store required")
	}
	return &Ledger{store: store}, nil
}

// GetOrder returns the order stored under orderID, or nil when the store
// has no record of it. A corrupt record is treated as a miss.
func (l *Ledger) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	raw, err := l.store.Get(ctx, l.store.OrderKey(orderID))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "read order")
	}
	var order Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, nil
	}
	return &order, nil
}

// CreateOrder persists a new order only if none exists under its id. When
// a concurrent writer got there first, the stored record wins and is
// returned, so retries always converge to one serial per order.
func (l *Ledger) CreateOrder(ctx context.Context, order *Order) (bool, *Order, error) {
	if order == nil || order.OrderID == "" {
		return false, nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "order id required")
	}
	encoded, err := json.Marshal(order)
	if err != nil {
		return false, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order")
	}
	created, err := l.store.SetNX(ctx, l.store.OrderKey(order.OrderID), string(encoded), 0)
	if err != nil {
		return false, nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "write order")
	}
	if created {
		return true, order, nil
	}
	existing, err := l.GetOrder(ctx, order.OrderID)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		// Lost the race to a writer whose record has since vanished;
		// surface it rather than silently re-minting.
		return false, nil, pkgerrors.New(pkgerrors.CodeUpstream, "order vanished during create")
	}
	return false, existing, nil
}

// UpdateOrder overwrites an existing order record. Only the revocation
// path uses it.
func (l *Ledger) UpdateOrder(ctx context.Context, order *Order) error {
	if order == nil || order.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, "order id required")
	}
	encoded, err := json.Marshal(order)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order")
	}
	if err := l.store.Set(ctx, l.store.OrderKey(order.OrderID), string(encoded), 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "write order")
	}
	return nil
}

// IndexPaymentRef records the payment-reference to order-id mapping. The
// first write wins; the entry is only ever written alongside an order
// that exists, so it never dangles.
func (l *Ledger) IndexPaymentRef(ctx context.Context, ref, orderID string) error {
	if ref == "" || orderID == "" {
		return nil
	}
	if _, err := l.store.SetNX(ctx, l.store.PaymentRefKey(ref), orderID, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "index payment reference")
	}
	return nil
}

// OrderIDByPaymentRef resolves a payment reference to the order it
// belongs to, or "" when the index has no entry.
func (l *Ledger) OrderIDByPaymentRef(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	orderID, err := l.store.Get(ctx, l.store.PaymentRefKey(ref))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "read payment reference index")
	}
	return orderID, nil
}
