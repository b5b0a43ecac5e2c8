package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// CreatePost inserts a feed post authored by authorID.
func CreatePost(ctx context.Context, db *gorm.DB, authorID, content string) (*domain.Post, error) {
	now := time.Now().UTC()
	p := &domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// CountPosts returns the number of visible posts, optionally for one author.
func CountPosts(ctx context.Context, db *gorm.DB, authorID string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Post{})
	if authorID != "" {
		q = q.Where("author_id = ?", authorID)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListPostsPage returns a page of the feed, newest first.
func ListPostsPage(ctx context.Context, db *gorm.DB, authorID string, offset, limit int) ([]domain.Post, error) {
	var out []domain.Post
	q := db.WithContext(ctx)
	if authorID != "" {
		q = q.Where("author_id = ?", authorID)
	}
	err := q.Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeletePost soft-deletes a post owned by authorID.
func DeletePost(ctx context.Context, db *gorm.DB, id, authorID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND author_id = ?", id, authorID).
		Delete(&domain.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
