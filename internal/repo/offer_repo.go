// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Offer model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an offer is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Conditional updates that match zero rows also return ErrNotFound; the
//     caller decides whether that means "missing" or "no longer pending".
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// OfferRole selects which side of an offer a listing is for.
type OfferRole string

const (
	OfferRoleSent     OfferRole = "sent"
	OfferRoleReceived OfferRole = "received"
)

func (r OfferRole) column() string {
	if r == OfferRoleSent {
		return "sender_id"
	}
	return "recipient_id"
}

// CreateOffer inserts a pending offer from senderID to recipientID.
func CreateOffer(ctx context.Context, db *gorm.DB, senderID, recipientID, title, description string, amountCents int64) (*domain.Offer, error) {
	now := time.Now().UTC()
	o := &domain.Offer{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Title:       title,
		Description: description,
		AmountCents: amountCents,
		Status:      domain.OfferPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// GetOffer fetches a single offer by ID regardless of owner. Ownership is a
// business rule enforced by the caller so it can distinguish 403 from 404.
func GetOffer(ctx context.Context, db *gorm.DB, id string) (*domain.Offer, error) {
	var o domain.Offer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOffers returns how many offers userID has on the given side.
func CountOffers(ctx context.Context, db *gorm.DB, userID string, role OfferRole) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where(role.column()+" = ?", userID).
		Count(&total).Error
	return total, err
}

// ListOffersPage returns a page of offers for userID on the given side,
// newest first.
func ListOffersPage(ctx context.Context, db *gorm.DB, userID string, role OfferRole, offset, limit int) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).
		Where(role.column()+" = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AcceptOfferIfPending performs the single pending -> accepted transition.
// The UPDATE is predicated on id, recipient and status='pending', so a
// second call for the same offer affects zero rows and returns ErrNotFound.
func AcceptOfferIfPending(ctx context.Context, db *gorm.DB, id, recipientID, paymentIntentID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ? AND recipient_id = ? AND status = ?", id, recipientID, domain.OfferPending).
		Updates(map[string]any{
			"status":            domain.OfferAccepted,
			"accepted_at":       now,
			"payment_intent_id": paymentIntentID,
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeclineOfferIfPending moves a pending offer addressed to recipientID to
// declined. Zero affected rows returns ErrNotFound.
func DeclineOfferIfPending(ctx context.Context, db *gorm.DB, id, recipientID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ? AND recipient_id = ? AND status = ?", id, recipientID, domain.OfferPending).
		Updates(map[string]any{
			"status":     domain.OfferDeclined,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// WithdrawOfferIfPending lets the sender retract a pending offer.
func WithdrawOfferIfPending(ctx context.Context, db *gorm.DB, id, senderID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ? AND sender_id = ? AND status = ?", id, senderID, domain.OfferPending).
		Updates(map[string]any{
			"status":     domain.OfferWithdrawn,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
