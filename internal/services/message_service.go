// Package services – MessageService
//
// This file implements MessageService, which owns direct messages between
// two users. It validates content, refuses self-messages and unknown
// recipients, and exposes a paginated thread view plus read receipts.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the participants and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageService coordinates direct-message persistence.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes rejects longer messages; 0 disables the check.
	MaxContentRunes int
}

// NewMessageService constructs a MessageService with default limits.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db, MaxContentRunes: 4000}
}

// Send stores a message from senderID to recipientID.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID, content string) (*domain.DirectMessage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
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
		return nil, ErrSelfMessage
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}
	if _, err := repo.GetProfile(ctx, s.DB, recipientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return repo.CreateDirectMessage(ctx, s.DB, senderID, recipientID, content)
}

// Thread returns a page of the conversation between userID and otherID in
// chronological order.
func (s *MessageService) Thread(ctx context.Context, userID, otherID string, page, pageSize int) ([]domain.DirectMessage, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Thread",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("other.id", otherID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountThread(ctx, s.DB, userID, otherID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DirectMessage{}, 0, nil
	}
	items, err := repo.ListThreadPage(ctx, s.DB, userID, otherID, offset, limit)
	return items, total, err
}

// MarkRead marks everything otherID sent to userID as read. Only the
// recipient side is ever updated.
func (s *MessageService) MarkRead(ctx context.Context, userID, otherID string) (int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("other.id", otherID),
		),
	)
	defer span.End()

	return repo.MarkThreadRead(ctx, s.DB, userID, otherID, time.Now().UTC())
}

// UnreadCount returns the number of unread messages addressed to userID.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnreadMessages(ctx, s.DB, userID)
}
