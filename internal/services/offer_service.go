package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OfferService manages offers outside the payment path: sending, listing,
// declining and withdrawing. Acceptance lives in PaymentService.
type OfferService struct {
	DB *gorm.DB

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewOfferService constructs an OfferService with default limits.
func NewOfferService(db *gorm.DB) *OfferService {
	return &OfferService{DB: db, TitleMaxLen: 120}
}

// Create sends a pending offer from senderID to recipientID.
func (s *OfferService) Create(ctx context.Context, senderID, recipientID, title, description string, amountCents int64) (*domain.Offer, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", senderID),
			attribute.String("recipient.id", recipientID),
		),
	)
	defer span.End()

	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, ErrRecipientRequired
	}
	if recipientID == senderID {
		return nil, ErrSelfOffer
	}
	title = normalizeTitle(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	title = clipRunes(title, s.TitleMaxLen)
	if amountCents < domain.MinOfferAmountCents {
		return nil, ErrAmountTooSmall
	}
	if amountCents > domain.MaxChargeCents {
		return nil, ErrAmountTooLarge
	}
	return repo.CreateOffer(ctx, s.DB, senderID, recipientID, title, strings.TrimSpace(description), amountCents)
}

// Get returns an offer visible to userID (sender or recipient).
func (s *OfferService) Get(ctx context.Context, userID, offerID string) (*domain.Offer, error) {
	o, err := repo.GetOffer(ctx, s.DB, offerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if o.SenderID != userID && o.RecipientID != userID {
		return nil, ErrOfferNotFound
	}
	return o, nil
}

// ListPage returns a page of offers the user sent or received.
func (s *OfferService) ListPage(ctx context.Context, userID string, role repo.OfferRole, page, pageSize int) ([]domain.Offer, int64, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("role", string(role)),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountOffers(ctx, s.DB, userID, role)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Offer{}, 0, nil
	}
	items, err := repo.ListOffersPage(ctx, s.DB, userID, role, offset, limit)
	return items, total, err
}

// Decline rejects a pending offer; only its recipient may do so.
func (s *OfferService) Decline(ctx context.Context, userID, offerID string) error {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "Decline", trace.WithAttributes(attribute.String("offer.id", offerID)))
	defer span.End()

	o, err := s.Get(ctx, userID, offerID)
	if err != nil {
		return err
	}
	if o.RecipientID != userID {
		return ErrNotOfferRecipient
	}
	if err := repo.DeclineOfferIfPending(ctx, s.DB, offerID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOfferNotPending
		}
		return err
	}
	return nil
}

// Withdraw cancels a pending offer; only its sender may do so.
func (s *OfferService) Withdraw(ctx context.Context, userID, offerID string) error {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "Withdraw", trace.WithAttributes(attribute.String("offer.id", offerID)))
	defer span.End()

	o, err := s.Get(ctx, userID, offerID)
	if err != nil {
		return err
	}
	if o.SenderID != userID {
		return ErrNotOfferSender
	}
	if err := repo.WithdrawOfferIfPending(ctx, s.DB, offerID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOfferNotPending
		}
		return err
	}
	return nil
}

// Stats returns the count and latest update time for the user's offers in
// the given role; handlers derive ETags from it.
func (s *OfferService) Stats(ctx context.Context, userID string, role repo.OfferRole) (int64, int64, error) {
	n, ts, err := repo.OffersStats(ctx, s.DB, userID, role)
	if err != nil || ts == nil {
		return n, 0, err
	}
	return n, ts.UnixNano(), nil
}
