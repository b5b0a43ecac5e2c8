// Package payments adapts the Stripe API to the small surface the
// marketplace needs: creating payment intents, retrieving them to verify
// their status and metadata, and parsing signed webhook deliveries.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Intent metadata keys.
const (
	MetaOfferID     = "offer_id"
	MetaRecipientID = "recipient_id"
	MetaSenderID    = "sender_id"
	MetaType        = "type"
	MetaProjectID   = "project_id"
	MetaUserID      = "user_id"

	TypeCrowdfunding = "crowdfunding"
)

// StatusSucceeded is the only intent status that authorizes a state change.
const StatusSucceeded = string(stripe.PaymentIntentStatusSucceeded)

// ErrIntentNotFound is returned when the processor has no intent with the given id.
var ErrIntentNotFound = errors.New("payment intent not found")

// Intent is the processor-agnostic view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

// Succeeded reports whether the intent has been paid.
func (i *Intent) Succeeded() bool { return i != nil && i.Status == StatusSucceeded }

// Meta returns a trimmed metadata value ("" when absent).
func (i *Intent) Meta(key string) string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(i.Metadata[key])
}

// CreateParams describes a new payment intent.
type CreateParams struct {
	AmountCents    int64
	Currency       string // defaults to the gateway currency
	Description    string
	Metadata       map[string]string
	IdempotencyKey string // forwarded as the Idempotency-Key header when set
}

// StripeGateway creates and retrieves payment intents with a per-instance
// API client (no global stripe.Key).
type StripeGateway struct {
	api      *client.API
	currency string
}

// Option customizes a StripeGateway.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	currency string
	backends *stripe.Backends
}

// WithCurrency sets the default ISO currency for new intents.
func WithCurrency(c string) Option {
	return func(o *gatewayOptions) { o.currency = strings.ToLower(c) }
}

// WithBackend routes all API calls through b (used to point at a stub server).
func WithBackend(b stripe.Backend) Option {
	return func(o *gatewayOptions) {
		o.backends = &stripe.Backends{API: b, Connect: b, Uploads: b}
	}
}

// NewStripeGateway returns a gateway authenticated with secretKey.
func NewStripeGateway(secretKey string, opts ...Option) *StripeGateway {
	o := gatewayOptions{currency: "usd"}
	for _, fn := range opts {
		fn(&o)
	}
	return &StripeGateway{
		api:      client.New(secretKey, o.backends),
		currency: o.currency,
	}
}

// CreateIntent creates an intent with automatic payment methods enabled.
func (g *StripeGateway) CreateIntent(ctx context.Context, p CreateParams) (*Intent, error) {
	currency := p.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

// GetIntent retrieves an intent by id. Unknown ids yield ErrIntentNotFound.
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && (se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == 404) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("stripe: retrieve payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	md := make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		md[k] = v
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     md,
	}
}
