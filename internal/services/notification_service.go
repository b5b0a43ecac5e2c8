package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NotificationService reads and acknowledges crowdfunding notifications.
type NotificationService struct {
	DB *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// ListPage returns a page of the user's notifications, newest first.
func (s *NotificationService) ListPage(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]domain.CrowdfundingNotification, int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("unread_only", unreadOnly),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountNotifications(ctx, s.DB, userID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CrowdfundingNotification{}, 0, nil
	}
	items, err := repo.ListNotificationsPage(ctx, s.DB, userID, unreadOnly, offset, limit)
	return items, total, err
}

// MarkRead acknowledges one of the user's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "MarkRead", trace.WithAttributes(attribute.String("notification.id", id)))
	defer span.End()

	if err := repo.MarkNotificationRead(ctx, s.DB, id, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// Stats returns the notification count, the newest CreatedAt (unix nanos)
// and the unread count, which together change whenever the list does.
func (s *NotificationService) Stats(ctx context.Context, userID string) (count, latest, unread int64, err error) {
	count, ts, err := repo.NotificationsStats(ctx, s.DB, userID)
	if err != nil {
		return 0, 0, 0, err
	}
	if ts != nil {
		latest = ts.UnixNano()
	}
	unread, err = repo.CountNotifications(ctx, s.DB, userID, true)
	return count, latest, unread, err
}
