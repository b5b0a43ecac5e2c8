package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Event types the marketplace reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Event is a verified webhook delivery. Intent is set for payment_intent.* events.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
	Raw    []byte
}

// ParseWebhook verifies the Stripe-Signature header against secret and
// decodes the event. API version mismatches are tolerated so upgrading the
// account does not break deliveries.
func ParseWebhook(payload []byte, signatureHeader, secret string) (*Event, error) {
	if strings.TrimSpace(signatureHeader) == "" || secret == "" {
		return nil, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                5 * time.Minute,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.Raw = ev.Data.Raw
	}
	if strings.HasPrefix(out.Type, "payment_intent.") && len(out.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(out.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		out.Intent = fromStripe(&pi)
	}
	return out, nil
}
