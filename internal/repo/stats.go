// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// latestStats runs a count plus "latest updated_at" over q. When the query
// matches no rows, the returned count is 0 and maxUpdatedAt is nil.
func latestStats(q *gorm.DB, column string) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
		CreatedAt time.Time
	}
	if err = q.Select(column).Order(column + " DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	if column == "created_at" {
		return count, &row.CreatedAt, nil
	}
	return count, &row.UpdatedAt, nil
}

// OffersStats returns the number of offers userID has on the given side and
// the greatest UpdatedAt among them.
func OffersStats(ctx context.Context, db *gorm.DB, userID string, role OfferRole) (int64, *time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.Offer{}).Where(role.column()+" = ?", userID)
	return latestStats(q, "updated_at")
}

// NotificationsStats returns the number of notifications for userID and the
// latest CreatedAt. Marking a notification read does not change the pair, so
// the unread count is folded into the ETag by the caller.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.CrowdfundingNotification{}).Where("user_id = ?", userID)
	return latestStats(q, "created_at")
}
