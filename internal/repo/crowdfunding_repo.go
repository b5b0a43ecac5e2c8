package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// GetProject fetches a crowdfunding project by ID.
func GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.CrowdfundingProject, error) {
	var p domain.CrowdfundingProject
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func projectsQuery(ctx context.Context, db *gorm.DB, statuses []domain.ProjectStatus) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.CrowdfundingProject{})
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	return q
}

// CountProjects returns the number of projects in any of statuses (all when empty).
func CountProjects(ctx context.Context, db *gorm.DB, statuses []domain.ProjectStatus) (int64, error) {
	var total int64
	err := projectsQuery(ctx, db, statuses).Count(&total).Error
	return total, err
}

// ListProjectsPage returns a page of projects, newest first.
func ListProjectsPage(ctx context.Context, db *gorm.DB, statuses []domain.ProjectStatus, offset, limit int) ([]domain.CrowdfundingProject, error) {
	var out []domain.CrowdfundingProject
	err := projectsQuery(ctx, db, statuses).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ProjectRaisedCents sums the confirmed pledges of a project.
func ProjectRaisedCents(ctx context.Context, db *gorm.DB, projectID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CrowdfundingPledge{}).
		Where("project_id = ? AND status = ?", projectID, domain.PledgeConfirmed).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

// UpsertPledge inserts or overwrites the pledge for (projectID, userID) and
// returns the stored row. A repeated confirmation keeps one row and the
// last write wins on amount, status and payment intent.
func UpsertPledge(ctx context.Context, db *gorm.DB, projectID, userID string, amountCents int64, status, paymentIntentID string) (*domain.CrowdfundingPledge, error) {
	now := time.Now().UTC()
	p := &domain.CrowdfundingPledge{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		UserID:          userID,
		AmountCents:     amountCents,
		Status:          status,
		PaymentIntentID: paymentIntentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount_cents", "status", "payment_intent_id", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	// On conflict the generated ID was discarded; read the surviving row.
	return GetPledge(ctx, db, projectID, userID)
}

// GetPledge fetches the pledge of userID in projectID.
func GetPledge(ctx context.Context, db *gorm.DB, projectID, userID string) (*domain.CrowdfundingPledge, error) {
	var p domain.CrowdfundingPledge
	err := db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPledgesByUser returns every pledge of userID, most recently updated first.
func ListPledgesByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.CrowdfundingPledge, error) {
	var out []domain.CrowdfundingPledge
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// CreateNotification appends a notification for userID.
func CreateNotification(ctx context.Context, db *gorm.DB, userID, projectID, kind, message string) (*domain.CrowdfundingNotification, error) {
	n := &domain.CrowdfundingNotification{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// CountNotifications returns how many notifications userID has, optionally
// only unread ones.
func CountNotifications(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.CrowdfundingNotification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	err := q.Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of userID's notifications, newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool, offset, limit int) ([]domain.CrowdfundingNotification, error) {
	var out []domain.CrowdfundingNotification
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotificationRead sets read_at on a notification owned by userID.
// Already-read notifications keep their original timestamp.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, userID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.CrowdfundingNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", now))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
