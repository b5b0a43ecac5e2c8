// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for direct
// messages exchanged between two users.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// CreateDirectMessage inserts a message from senderID to recipientID.
func CreateDirectMessage(ctx context.Context, db *gorm.DB, senderID, recipientID, content string) (*domain.DirectMessage, error) {
	now := time.Now().UTC()
	m := &domain.DirectMessage{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func threadQuery(ctx context.Context, db *gorm.DB, userA, userB string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.DirectMessage{}).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userA, userB, userB, userA)
}

// CountThread returns the number of messages exchanged between two users.
func CountThread(ctx context.Context, db *gorm.DB, userA, userB string) (int64, error) {
	var total int64
	err := threadQuery(ctx, db, userA, userB).Count(&total).Error
	return total, err
}

// ListThreadPage returns messages between two users in chronological order.
func ListThreadPage(ctx context.Context, db *gorm.DB, userA, userB string, offset, limit int) ([]domain.DirectMessage, error) {
	var out []domain.DirectMessage
	err := threadQuery(ctx, db, userA, userB).
		Order("created_at asc").
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkThreadRead marks every unread message sent by otherID to userID as
// read and returns how many rows changed.
func MarkThreadRead(ctx context.Context, db *gorm.DB, userID, otherID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.DirectMessage{}).
		Where("recipient_id = ? AND sender_id = ? AND read_at IS NULL", userID, otherID).
		Update("read_at", now)
	return res.RowsAffected, res.Error
}

// CountUnreadMessages returns how many messages addressed to userID are unread.
func CountUnreadMessages(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DirectMessage{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Count(&total).Error
	return total, err
}
