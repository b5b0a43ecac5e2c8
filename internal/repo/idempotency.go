// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model (processed webhook deliveries) and the payment event audit log.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (scope, key) pair.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("scope = ? AND key = ? AND expires_at > ?", scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
// Expired rows for the same pair are purged first so a key can be reused
// after its TTL.
func CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key, ref string, ttl time.Duration) (*domain.Idempotency, error) {
	rec := &domain.Idempotency{Scope: scope, Key: key, Ref: ref}
	if err := insertIdempotency(ctx, db, rec, ttl); err != nil {
		return nil, err
	}
	return rec, nil
}

func insertIdempotency(ctx context.Context, db *gorm.DB, rec *domain.Idempotency, ttl time.Duration) error {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("scope = ? AND key = ? AND expires_at <= ?", rec.Scope, rec.Key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return err
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// isDuplicate reports unique-constraint violations across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}

// CreatePaymentEvent appends a webhook delivery to the audit log.
func CreatePaymentEvent(ctx context.Context, db *gorm.DB, providerEventID, typ, paymentIntentID string, payload []byte, status, detail string) (*domain.PaymentEvent, error) {
	ev := &domain.PaymentEvent{
		ID:              uuid.NewString(),
		ProviderEventID: providerEventID,
		Type:            typ,
		PaymentIntentID: paymentIntentID,
		Payload:         datatypes.JSON(payload),
		Status:          status,
		Detail:          detail,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListPaymentEventsByIntent returns the audit trail of one payment intent.
func ListPaymentEventsByIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) ([]domain.PaymentEvent, error) {
	var out []domain.PaymentEvent
	err := db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ScopeRequest namespaces HTTP Idempotency-Key records.
const ScopeRequest = "http_request"

// RequestKeyStore remembers completed HTTP requests and their answers by
// (scope, key) in the idempotency table. Both parts are hashed into the key
// column so long user ids and route templates fit.
type RequestKeyStore struct {
	DB *gorm.DB
}

// Lookup returns the stored answer for (scope, key), or nil when the pair is
// unknown or expired.
func (s RequestKeyStore) Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := GetIdempotency(ctx, s.DB, ScopeRequest, requestDigest(scope, key), now)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Remember stores the answer in rec for ttl. The first answer wins; recording
// twice is not an error.
func (s RequestKeyStore) Remember(ctx context.Context, scope, key string, rec domain.Idempotency, ttl time.Duration) error {
	rec.Scope = ScopeRequest
	rec.Key = requestDigest(scope, key)
	rec.Ref = scope
	err := insertIdempotency(ctx, s.DB, &rec, ttl)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func requestDigest(scope, key string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + key))
	return hex.EncodeToString(sum[:])
}
