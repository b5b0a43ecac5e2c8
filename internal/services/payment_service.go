// Package services – PaymentService
//
// PaymentService gates offer acceptance behind a successful payment. Intent
// creation re-reads the offer and checks recipient, status and amount before
// the processor is called. Acceptance trusts only what the processor reports
// for the intent (metadata and status) and then flips the offer with a single
// conditional update, so concurrent confirmations accept an offer once.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

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

// PaymentGateway is the processor surface used by the services.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, p payments.CreateParams) (*payments.Intent, error)
	GetIntent(ctx context.Context, id string) (*payments.Intent, error)
}

// PaymentService creates offer payment intents and accepts offers once paid.
type PaymentService struct {
	DB      *gorm.DB
	Gateway PaymentGateway
	Now     func() time.Time
}

// NewPaymentService wires a PaymentService.
func NewPaymentService(db *gorm.DB, gw PaymentGateway) *PaymentService {
	return &PaymentService{DB: db, Gateway: gw, Now: time.Now}
}

// CreateOfferIntent creates a payment intent for the offer's amount on
// behalf of its recipient and returns the client secret. The offer must be
// pending and chargeable. idemKey, when set, is forwarded to the processor.
func (s *PaymentService) CreateOfferIntent(ctx context.Context, callerID, offerID, idemKey string) (string, error) {
	tr := otel.Tracer("services/PaymentService")
	ctx, span := tr.Start(ctx, "CreateOfferIntent",
		trace.WithAttributes(
			attribute.String("offer.id", offerID),
			attribute.String("user.id", callerID),
		),
	)
	defer span.End()

	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return "", ErrOfferNotFound
	}
	offer, err := repo.GetOffer(ctx, s.DB, offerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrOfferNotFound
		}
		return "", err
	}
	if offer.RecipientID != callerID {
		return "", ErrNotOfferRecipient
	}
	if offer.Status != domain.OfferPending {
		return "", ErrOfferNotPending
	}
	if offer.AmountCents < domain.MinOfferAmountCents {
		return "", ErrAmountTooSmall
	}
	if offer.AmountCents > domain.MaxChargeCents {
		return "", ErrAmountTooLarge
	}

	intent, err := s.Gateway.CreateIntent(ctx, payments.CreateParams{
		AmountCents: offer.AmountCents,
		Description: offer.Title,
		Metadata: map[string]string{
			payments.MetaOfferID:     offer.ID,
			payments.MetaRecipientID: offer.RecipientID,
			payments.MetaSenderID:    offer.SenderID,
		},
		IdempotencyKey: scopedKey("offer", offer.ID, idemKey),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create intent")
		return "", err
	}
	observability.IntentCreated(observability.KindOffer)
	span.SetAttributes(attribute.String("payment_intent.id", intent.ID))
	return intent.ClientSecret, nil
}

// AcceptOfferAfterPayment accepts the offer named in the intent's metadata.
// Checks run in a fixed order: intent exists, metadata present, payer is the
// caller, intent succeeded, offer still pending. An offer already accepted
// with this same intent, e.g. by the webhook, counts as success.
func (s *PaymentService) AcceptOfferAfterPayment(ctx context.Context, callerID, intentID string) error {
	tr := otel.Tracer("services/PaymentService")
	ctx, span := tr.Start(ctx, "AcceptOfferAfterPayment",
		trace.WithAttributes(
			attribute.String("payment_intent.id", intentID),
			attribute.String("user.id", callerID),
		),
	)
	defer span.End()

	intent, err := retrieveIntent(ctx, s.Gateway, intentID)
	if err != nil {
		return err
	}

	offerID := intent.Meta(payments.MetaOfferID)
	recipientID := intent.Meta(payments.MetaRecipientID)
	span.SetAttributes(attribute.String("offer.id", offerID))
	if offerID == "" || recipientID == "" {
		observability.Transition(observability.KindOffer, observability.OutcomeRejected)
		return ErrMissingMetadata
	}
	if recipientID != callerID {
		observability.Transition(observability.KindOffer, observability.OutcomeRejected)
		return ErrPaymentNotOwned
	}
	if !intent.Succeeded() {
		observability.Transition(observability.KindOffer, observability.OutcomeRejected)
		return ErrPaymentNotSucceeded
	}

	err = repo.AcceptOfferIfPending(ctx, s.DB, offerID, callerID, intent.ID, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if acceptedWith(ctx, s.DB, offerID, callerID, intent.ID) {
				return nil
			}
			observability.Transition(observability.KindOffer, observability.OutcomeConflict)
			return ErrOfferNotPending
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept offer")
		return err
	}
	observability.Transition(observability.KindOffer, observability.OutcomeApplied)
	return nil
}

// acceptedWith reports whether the offer was accepted by recipientID and paid
// with intentID.
func acceptedWith(ctx context.Context, db *gorm.DB, offerID, recipientID, intentID string) bool {
	o, err := repo.GetOffer(ctx, db, offerID)
	if err != nil {
		return false
	}
	return o.Status == domain.OfferAccepted && o.RecipientID == recipientID &&
		o.PaymentIntentID != nil && *o.PaymentIntentID == intentID
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// retrieveIntent looks the intent up at the processor, mapping an unknown id
// to ErrIntentNotFound.
func retrieveIntent(ctx context.Context, gw PaymentGateway, intentID string) (*payments.Intent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, ErrMissingIntentID
	}
	intent, err := gw.GetIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, payments.ErrIntentNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return intent, nil
}

// scopedKey namespaces a client idempotency key by resource so the same
// header value can never replay an intent created for another resource.
func scopedKey(kind, resourceID, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return kind + ":" + resourceID + ":" + key
}
