package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FeedService manages posts in the professional network feed.
type FeedService struct {
	DB              *gorm.DB
	MaxContentRunes int
}

// NewFeedService constructs a FeedService with default limits.
func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{DB: db, MaxContentRunes: 5000}
}

// CreatePost publishes a post by authorID.
func (s *FeedService) CreatePost(ctx context.Context, authorID, content string) (*domain.Post, error) {
	tr := otel.Tracer("services/FeedService")
	ctx, span := tr.Start(ctx, "CreatePost", trace.WithAttributes(attribute.String("user.id", authorID)))
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}
	return repo.CreatePost(ctx, s.DB, authorID, content)
}

// ListPage returns the feed newest first; a non-empty authorID narrows it
// to one author.
func (s *FeedService) ListPage(ctx context.Context, authorID string, page, pageSize int) ([]domain.Post, int64, error) {
	tr := otel.Tracer("services/FeedService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("author.id", authorID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountPosts(ctx, s.DB, authorID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Post{}, 0, nil
	}
	items, err := repo.ListPostsPage(ctx, s.DB, authorID, offset, limit)
	return items, total, err
}

// Delete removes a post; only its author may do so. Posts owned by someone
// else are reported as not found.
func (s *FeedService) Delete(ctx context.Context, authorID, postID string) error {
	tr := otel.Tracer("services/FeedService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("post.id", postID)))
	defer span.End()

	if err := repo.DeletePost(ctx, s.DB, postID, authorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}
