package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
	"github.com/emrmusicgroup/tape16-api/pkg/resend"
)

const (
	emailSubject = "Your TAPE 16 Serial Number"
	sendTimeout  = 15 * time.Second
)

type sender interface {
	Enabled() bool
	Send(ctx context.Context, msg resend.Message) error
}

// Dispatcher delivers serial emails best-effort. It reports whether a
// send was attempted, never whether it was delivered; a failed or
// skipped send leaves the issued serial in the ledger and is recoverable
// through the self-service resend endpoint.
type Dispatcher struct {
	mail sender
	logg *logger.Logger
	mets *metrics.Metrics
}

func NewDispatcher(mail sender, logg *logger.Logger, mets *metrics.Metrics) (*Dispatcher, error) {
	if mail == nil {
		return nil, fmt.Errorf("mail client required")
	}
	return &Dispatcher{mail: mail, logg: logg, mets: mets}, nil
}

// Queue fires the send on a detached goroutine and returns immediately.
// The returned bool means "attempted": inputs were usable and provider
// credentials exist. Missing credentials are a silent no-send.
func (d *Dispatcher) Queue(ctx context.Context, to, serial, orderID string) bool {
	if !d.sendable(to, serial, orderID) {
		return false
	}
	// The send must outlive the request; keep the log fields, drop the
	// cancellation.
	detached := context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(detached, sendTimeout)
		defer cancel()
		d.deliver(sendCtx, to, serial, orderID)
	}()
	return true
}

// Send delivers inline and reports whether the provider accepted the
// message. Failures are logged, not propagated.
func (d *Dispatcher) Send(ctx context.Context, to, serial, orderID string) bool {
	if !d.sendable(to, serial, orderID) {
		return false
	}
	return d.deliver(ctx, to, serial, orderID)
}

func (d *Dispatcher) sendable(to, serial, orderID string) bool {
	if to == "" || !strings.Contains(to, "@") || serial == "" || orderID == "" {
		return false
	}
	if !d.mail.Enabled() {
		d.mets.IncEmailAttempt("skipped")
		return false
	}
	return true
}

func (d *Dispatcher) deliver(ctx context.Context, to, serial, orderID string) bool {
	msg := resend.Message{
		To:      []string{to},
		Subject: emailSubject,
		HTML:    serialHTML(serial, orderID),
		Text:    serialText(serial, orderID),
	}
	if err := d.mail.Send(ctx, msg); err != nil {
		if d.logg != nil {
			errCtx := d.logg.WithFields(ctx, map[string]any{
				"order_id":  orderID,
				"recipient": to,
			})
			d.logg.Error(errCtx, "serial email send failed", err)
		}
		d.mets.IncEmailAttempt("failed")
		return false
	}
	if d.logg != nil {
		okCtx := d.logg.WithFields(ctx, map[string]any{
			"order_id":  orderID,
			"recipient": to,
		})
		d.logg.Info(okCtx, "serial email sent")
	}
	d.mets.IncEmailAttempt("sent")
	return true
}

func serialHTML(serial, orderID string) string {
	return fmt.Sprintf(`
    <div style="font-family:Arial,sans-serif;line-height:1.5;color:#101420">
      <h2 style="margin:0 0 12px;">Thanks for purchasing TAPE 16</h2>
      <p style="margin:0 0 12px;">Your serial number:</p>
      <p style="margin:0 0 16px;font-size:20px;font-weight:700;letter-spacing:0.08em;">%s</p>
      <p style="margin:0 0 8px;">Order ID: <code>%s</code></p>
    </div>
  `, html.EscapeString(serial), html.EscapeString(orderID))
}

func serialText(serial, orderID string) string {
	return strings.Join([]string{
		"Thanks for purchasing TAPE 16.",
		"",
		"Serial: " + serial,
		"Order ID: " + orderID,
	}, "\n")
}
