package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/observability"
	"github.com/tbourn/go-realty-backend/internal/payments"
	"github.com/tbourn/go-realty-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// IdemScopeStripeEvent namespaces webhook event ids in the idempotency table.
const IdemScopeStripeEvent = "stripe_event"

// WebhookStatusDuplicate is returned for deliveries that were already handled.
const WebhookStatusDuplicate = "duplicate"

// WebhookService reconciles processor webhook deliveries with local state.
// A succeeded offer intent accepts its offer even when the client never
// called back; crowdfunding confirmations stay client-driven so the
// investor gets exactly one notification per confirmation call.
type WebhookService struct {
	DB *gorm.DB

	// DedupeTTL is how long an event id is remembered.
	DedupeTTL time.Duration
	Now       func() time.Time
}

// NewWebhookService constructs a WebhookService that remembers event ids
// for a week, longer than the processor's retry window.
func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{DB: db, DedupeTTL: 7 * 24 * time.Hour, Now: time.Now}
}

// Handle processes one verified event and returns the status recorded for
// it. Returning an error means the delivery should be retried.
func (s *WebhookService) Handle(ctx context.Context, ev *payments.Event) (string, error) {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type),
		),
	)
	defer span.End()

	intentID := ""
	if ev.Intent != nil {
		intentID = ev.Intent.ID
	}

	var status string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateIdempotency(ctx, tx, IdemScopeStripeEvent, ev.ID, ev.Type, s.DedupeTTL); err != nil {
			return err
		}
		st, detail, err := s.apply(ctx, tx, ev)
		if err != nil {
			return err
		}
		status = st
		_, err = repo.CreatePaymentEvent(ctx, tx, ev.ID, ev.Type, intentID, ev.Raw, st, detail)
		return err
	})

	switch {
	case errors.Is(err, repo.ErrDuplicate):
		observability.WebhookEvent(ev.Type, WebhookStatusDuplicate)
		return WebhookStatusDuplicate, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook")
		observability.WebhookEvent(ev.Type, domain.PaymentEventFailed)
		if _, lerr := repo.CreatePaymentEvent(ctx, s.DB, ev.ID, ev.Type, intentID, ev.Raw, domain.PaymentEventFailed, err.Error()); lerr != nil {
			log.Warn().Err(lerr).Str("event_id", ev.ID).Msg("payment event audit write failed")
		}
		return domain.PaymentEventFailed, err
	}
	observability.WebhookEvent(ev.Type, status)
	return status, nil
}

// apply performs the state change an event implies, if any.
func (s *WebhookService) apply(ctx context.Context, tx *gorm.DB, ev *payments.Event) (status, detail string, err error) {
	if ev.Type != payments.EventIntentSucceeded || ev.Intent == nil {
		return domain.PaymentEventIgnored, "no action for event type", nil
	}
	in := ev.Intent
	if in.Meta(payments.MetaType) == payments.TypeCrowdfunding {
		return domain.PaymentEventIgnored, "crowdfunding pledges are confirmed by the investor", nil
	}
	offerID, recipientID := in.Meta(payments.MetaOfferID), in.Meta(payments.MetaRecipientID)
	if offerID == "" || recipientID == "" {
		return domain.PaymentEventIgnored, "intent has no offer metadata", nil
	}
	if !in.Succeeded() {
		return domain.PaymentEventIgnored, "intent status " + in.Status, nil
	}

	err = repo.AcceptOfferIfPending(ctx, tx, offerID, recipientID, in.ID, s.now())
	switch {
	case errors.Is(err, repo.ErrNotFound) && acceptedWith(ctx, tx, offerID, recipientID, in.ID):
		return domain.PaymentEventProcessed, "offer " + offerID + " already accepted", nil
	case errors.Is(err, repo.ErrNotFound):
		return domain.PaymentEventIgnored, "offer " + offerID + " is not pending", nil
	case err != nil:
		return "", "", err
	}
	observability.Transition(observability.KindOffer, observability.OutcomeApplied)
	return domain.PaymentEventProcessed, "offer " + offerID + " accepted", nil
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
