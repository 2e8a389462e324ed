package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records counters for the issuance and revocation paths.
type Metrics struct {
	webhookEvents  *prometheus.CounterVec
	serialsIssued  prometheus.Counter
	revocations    prometheus.Counter
	emailAttempts  *prometheus.CounterVec
	resendRequests prometheus.Counter
}

// New registers the service metrics on the provided registerer. A nil
// registerer yields a no-op instance, which keeps tests quiet.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Stripe webhook events received, by type and outcome.",
	}, []string{"event_type", "outcome"})
	serialsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "serials_issued_total",
		Help: "Newly minted license serials.",
	})
	revocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "serials_revoked_total",
		Help: "Orders flipped to the revoked state.",
	})
	emailAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serial_email_attempts_total",
		Help: "Serial email sends attempted, by result.",
	}, []string{"result"})
	resendRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resend_requests_total",
		Help: "Self-service resend requests received.",
	})
	reg.MustRegister(webhookEvents, serialsIssued, revocations, emailAttempts, resendRequests)
	return &Metrics{
		webhookEvents:  webhookEvents,
		serialsIssued:  serialsIssued,
		revocations:    revocations,
		emailAttempts:  emailAttempts,
		resendRequests: resendRequests,
	}
}

// IncWebhookEvent counts one received webhook event.
func (m *Metrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncSerialIssued counts one newly minted serial.
func (m *Metrics) IncSerialIssued() {
	if m == nil || m.serialsIssued == nil {
		return
	}
	m.serialsIssued.Inc()
}

// IncRevocation counts one order revocation.
func (m *Metrics) IncRevocation() {
	if m == nil || m.revocations == nil {
		return
	}
	m.revocations.Inc()
}

// IncEmailAttempt counts one email send attempt by result.
func (m *Metrics) IncEmailAttempt(result string) {
	if m == nil || m.emailAttempts == nil {
		return
	}
	m.emailAttempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncResendRequest counts one self-service resend request.
func (m *Metrics) IncResendRequest() {
	if m == nil || m.resendRequests == nil {
		return
	}
	m.resendRequests.Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
