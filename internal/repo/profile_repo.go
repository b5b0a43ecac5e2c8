package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// DirectoryFilter narrows the professional directory listing. Empty fields
// are ignored; City and State match case-insensitively.
type DirectoryFilter struct {
	Type  domain.ProfessionalType
	City  string
	State string
}

// GetProfile fetches a profile by user ID.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile returns the profile for id, creating an empty one on first use.
func EnsureProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{ID: id, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error; err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, id)
}

// UpdateProfileFields applies a partial update to profile id.
func UpdateProfileFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func directoryQuery(ctx context.Context, db *gorm.DB, f DirectoryFilter) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Profile{}).Where("is_professional = ?", true)
	if f.Type != "" {
		q = q.Where("professional_type = ?", f.Type)
	}
	if c := strings.TrimSpace(f.City); c != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(c))
	}
	if s := strings.TrimSpace(f.State); s != "" {
		q = q.Where("LOWER(state) = ?", strings.ToLower(s))
	}
	return q
}

// CountProfessionals returns the number of directory entries matching f.
func CountProfessionals(ctx context.Context, db *gorm.DB, f DirectoryFilter) (int64, error) {
	var total int64
	err := directoryQuery(ctx, db, f).Count(&total).Error
	return total, err
}

// ListProfessionalsPage returns a page of directory entries ordered by
// experience then name.
func ListProfessionalsPage(ctx context.Context, db *gorm.DB, f DirectoryFilter, offset, limit int) ([]domain.Profile, error) {
	var out []domain.Profile
	err := directoryQuery(ctx, db, f).
		Order("years_experience desc").
		Order("full_name asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListProfessionals returns every directory entry matching f, capped at max
// rows. Used to build the in-memory search index for free-text queries.
func ListProfessionals(ctx context.Context, db *gorm.DB, f DirectoryFilter, max int) ([]domain.Profile, error) {
	var out []domain.Profile
	err := directoryQuery(ctx, db, f).
		Order("updated_at desc").
		Limit(max).
		Find(&out).Error
	return out, err
}
