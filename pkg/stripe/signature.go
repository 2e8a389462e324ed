package stripe

import (
	"github.com/stripe/stripe-go/v84/webhook"
)

// VerifySignature checks a Stripe-Signature header against the raw
// request body. The header carries a timestamp (t) and one or more v1
// signatures; during secret rotation Stripe signs with every active
// secret, so any matching v1 accepts.
//
// Verification runs against the exact raw bytes received, before any
// JSON decoding. There is no freshness window: replaying an old signed
// event re-enters the idempotent issuance/revocation paths and converges
// to the same stored state.
func VerifySignature(payload []byte, header, secret string) bool {
	if len(payload) == 0 || header == "" || secret == "" {
		return false
	}
	return webhook.ValidatePayloadIgnoringTolerance(payload, header, secret) == nil
}
