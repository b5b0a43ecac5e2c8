// Package services – ProfileService
//
// ProfileService owns user profiles: the three-step professional
// registration flow, the public directory of professionals, and avatar and
// license-document uploads. Directory filters run in SQL; a free-text query
// ranks the filtered rows with the in-memory search index. Reads are cached
// in Redis when a cache is configured, and every profile write bumps the
// directory generation so cached listings expire together.
package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/cache"
	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/search"
	"github.com/tbourn/go-realty-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
)

// ObjectStore uploads a file and returns its public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// RegistrationInput carries the fields of one registration step. Only the
// fields of the step being saved are read.
type RegistrationInput struct {
	// Step 1
	FullName string
	Headline string
	City     string
	State    string

	// Step 2
	ProfessionalType string
	LicenseNumber    string
	LicenseState     string
	YearsExperience  int

	// Step 3
	Services []string
	Bio      string
}

// DirectoryQuery selects a page of the professional directory.
type DirectoryQuery struct {
	Q        string
	Type     string
	City     string
	State    string
	Page     int
	PageSize int
}

// DirectoryPage is one page of directory results.
type DirectoryPage struct {
	Items []domain.Profile `json:"items"`
	Total int64            `json:"total"`
}

const (
	directoryNS       = "directory"
	maxIndexedProfile = 1000
	maxServices       = 20
	maxServiceRunes   = 60
	maxBioRunes       = 2000
	maxNameRunes      = 120
	maxYears          = 80
)

// Upload kinds and their allowed content types.
var (
	avatarTypes = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
	}
	documentTypes = map[string]string{
		"image/jpeg":      "jpg",
		"image/png":       "png",
		"image/webp":      "webp",
		"application/pdf": "pdf",
	}
)

// ProfileService coordinates profile persistence, caching and uploads.
type ProfileService struct {
	DB             *gorm.DB
	Cache          *cache.Cache // nil disables caching
	Store          ObjectStore  // nil disables uploads
	Locale         language.Tag
	CacheTTL       time.Duration
	MaxUploadBytes int64
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB, c *cache.Cache, store ObjectStore) *ProfileService {
	return &ProfileService{
		DB:             db,
		Cache:          c,
		Store:          store,
		Locale:         language.English,
		CacheTTL:       time.Minute,
		MaxUploadBytes: 5 << 20,
	}
}

// Me returns the caller's profile, creating an empty one on first access.
func (s *ProfileService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Me", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.EnsureProfile(ctx, s.DB, userID)
}

// Get returns profile id as viewerID sees it. Only the owner gets the
// license document URL.
func (s *ProfileService) Get(ctx context.Context, viewerID, id string) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("profile.id", id)))
	defer span.End()

	var p domain.Profile
	if hit, _ := s.Cache.GetJSON(ctx, profileKey(id), &p); hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return viewAs(viewerID, &p), nil
	}
	got, err := repo.GetProfile(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	s.cacheSet(ctx, profileKey(id), got)
	return viewAs(viewerID, got), nil
}

func viewAs(viewerID string, p *domain.Profile) *domain.Profile {
	if p.ID == viewerID {
		return p
	}
	pub := p.Public()
	return &pub
}

// Browse lists professionals matching q. Without a free-text query the SQL
// order (experience, then name) is kept; with one, rows are ranked by
// similarity and rows that do not match are dropped.
func (s *ProfileService) Browse(ctx context.Context, q DirectoryQuery) (*DirectoryPage, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Browse",
		trace.WithAttributes(
			attribute.String("query", q.Q),
			attribute.String("type", q.Type),
			attribute.Int("page", q.Page),
		),
	)
	defer span.End()

	f := repo.DirectoryFilter{
		Type:  domain.ProfessionalType(strings.ToLower(strings.TrimSpace(q.Type))),
		City:  q.City,
		State: q.State,
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, ErrInvalidProfile
	}
	offset, limit := utils.PageWindow(q.Page, q.PageSize)

	key := ""
	if s.Cache.Enabled() {
		gen, err := s.Cache.Generation(ctx, directoryNS)
		if err == nil {
			key = directoryKey(gen, f, q.Q, offset, limit)
			var cached DirectoryPage
			if hit, _ := s.Cache.GetJSON(ctx, key, &cached); hit {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return &cached, nil
			}
		}
	}

	var (
		page *DirectoryPage
		err  error
	)
	if strings.TrimSpace(q.Q) == "" {
		page, err = s.browseSQL(ctx, f, offset, limit)
	} else {
		page, err = s.browseRanked(ctx, f, q.Q, offset, limit)
	}
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.cacheSet(ctx, key, page)
	}
	return page, nil
}

func (s *ProfileService) browseSQL(ctx context.Context, f repo.DirectoryFilter, offset, limit int) (*DirectoryPage, error) {
	total, err := repo.CountProfessionals(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &DirectoryPage{Items: []domain.Profile{}}, nil
	}
	items, err := repo.ListProfessionalsPage(ctx, s.DB, f, offset, limit)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = items[i].Public()
	}
	return &DirectoryPage{Items: items, Total: total}, nil
}

func (s *ProfileService) browseRanked(ctx context.Context, f repo.DirectoryFilter, query string, offset, limit int) (*DirectoryPage, error) {
	rows, err := repo.ListProfessionals(ctx, s.DB, f, maxIndexedProfile)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Profile, len(rows))
	docs := make([]search.Document, 0, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
		docs = append(docs, search.Document{ID: p.ID, Text: profileText(p)})
	}
	ranked := search.NewIndex(docs).TopK(query, 0)

	out := &DirectoryPage{Items: []domain.Profile{}, Total: int64(len(ranked))}
	if offset >= len(ranked) {
		return out, nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	for _, r := range ranked[offset:end] {
		out.Items = append(out.Items, byID[r.ID].Public())
	}
	return out, nil
}

// SaveRegistrationStep validates and stores one registration step. A step
// can be saved once every earlier step is complete; re-saving an earlier
// step is allowed and keeps later progress.
func (s *ProfileService) SaveRegistrationStep(ctx context.Context, userID string, step int, in RegistrationInput) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "SaveRegistrationStep",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("step", step),
		),
	)
	defer span.End()

	if step < domain.StepBasicInfo || step > domain.FinalStep {
		return nil, ErrInvalidStep
	}
	fields, err := s.stepFields(step, in)
	if err != nil {
		return nil, err
	}

	var out *domain.Profile
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.EnsureProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		if step > p.RegistrationStep+1 {
			return ErrStepOutOfOrder
		}
		if step > p.RegistrationStep {
			fields["registration_step"] = step
		}
		if err := repo.UpdateProfileFields(ctx, tx, userID, fields); err != nil {
			return err
		}
		out, err = repo.GetProfile(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return out, nil
}

// CompleteRegistration lists the caller in the directory once every step
// has been saved. Completing twice keeps the first completion time.
func (s *ProfileService) CompleteRegistration(ctx context.Context, userID string) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "CompleteRegistration", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	p, err := repo.EnsureProfile(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if p.RegistrationStep < domain.FinalStep {
		return nil, ErrRegistrationOpen
	}
	if p.IsProfessional && p.RegistrationCompletedAt != nil {
		return p, nil
	}
	fields := map[string]any{"is_professional": true}
	if p.RegistrationCompletedAt == nil {
		fields["registration_completed_at"] = time.Now().UTC()
	}
	if err := repo.UpdateProfileFields(ctx, s.DB, userID, fields); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return repo.GetProfile(ctx, s.DB, userID)
}

// UploadAvatar stores a profile picture and records its URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, contentType string, data []byte) (*domain.Profile, error) {
	return s.upload(ctx, userID, "avatars", "avatar_url", avatarTypes, contentType, data)
}

// UploadLicenseDocument stores a license scan and records its URL.
func (s *ProfileService) UploadLicenseDocument(ctx context.Context, userID, contentType string, data []byte) (*domain.Profile, error) {
	return s.upload(ctx, userID, "licenses", "license_doc_url", documentTypes, contentType, data)
}

func (s *ProfileService) upload(ctx context.Context, userID, folder, column string, allowed map[string]string, contentType string, data []byte) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("folder", folder),
			attribute.Int("size", len(data)),
		),
	)
	defer span.End()

	if s.Store == nil {
		return nil, ErrStorageDisabled
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := allowed[contentType]
	if !ok {
		return nil, ErrUnsupportedFile
	}
	if len(data) == 0 {
		return nil, ErrUnsupportedFile
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if _, err := repo.EnsureProfile(ctx, s.DB, userID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s/%s.%s", folder, userID, uuid.NewString(), ext)
	u, err := s.Store.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateProfileFields(ctx, s.DB, userID, map[string]any{column: u}); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return repo.GetProfile(ctx, s.DB, userID)
}

// stepFields validates in for step and returns the columns to write.
func (s *ProfileService) stepFields(step int, in RegistrationInput) (map[string]any, error) {
	switch step {
	case domain.StepBasicInfo:
		name := titleCase(in.FullName, s.Locale)
		city := titleCase(in.City, s.Locale)
		state := normalizeState(in.State, s.Locale)
		if name == "" || city == "" || state == "" || utf8.RuneCountInString(name) > maxNameRunes {
			return nil, ErrInvalidProfile
		}
		return map[string]any{
			"full_name": name,
			"headline":  clipRunes(normalizeTitle(in.Headline), 255),
			"city":      city,
			"state":     state,
		}, nil

	case domain.StepProfessional:
		pt := domain.ProfessionalType(strings.ToLower(strings.TrimSpace(in.ProfessionalType)))
		if !pt.Valid() || in.YearsExperience < 0 || in.YearsExperience > maxYears {
			return nil, ErrInvalidProfile
		}
		license := strings.ToUpper(strings.TrimSpace(in.LicenseNumber))
		if license == "" && pt != domain.ProInvestor {
			return nil, ErrInvalidProfile
		}
		return map[string]any{
			"professional_type": pt,
			"license_number":    license,
			"license_state":     normalizeState(in.LicenseState, s.Locale),
			"years_experience":  in.YearsExperience,
		}, nil

	case domain.StepServices:
		services := utils.SplitCSV(strings.Join(in.Services, ","))
		if len(services) == 0 || len(services) > maxServices {
			return nil, ErrInvalidProfile
		}
		for _, sv := range services {
			if utf8.RuneCountInString(sv) > maxServiceRunes {
				return nil, ErrInvalidProfile
			}
		}
		bio := strings.TrimSpace(in.Bio)
		if utf8.RuneCountInString(bio) > maxBioRunes {
			return nil, ErrInvalidProfile
		}
		return map[string]any{
			"services": strings.Join(services, ","),
			"bio":      bio,
		}, nil
	}
	return nil, ErrInvalidStep
}

func (s *ProfileService) invalidate(ctx context.Context, userID string) {
	if !s.Cache.Enabled() {
		return
	}
	if err := s.Cache.Delete(ctx, profileKey(userID)); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("profile cache delete failed")
	}
	if err := s.Cache.Bump(ctx, directoryNS); err != nil {
		log.Warn().Err(err).Msg("directory cache bump failed")
	}
}

func (s *ProfileService) cacheSet(ctx context.Context, key string, v any) {
	if err := s.Cache.SetJSON(ctx, key, v, s.CacheTTL); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// normalizeState upper-cases two-letter codes and title-cases names.
func normalizeState(s string, tag language.Tag) string {
	s = normalizeTitle(s)
	if utf8.RuneCountInString(s) == 2 {
		return strings.ToUpper(s)
	}
	return titleCase(s, tag)
}

// profileText is the searchable text of a directory entry.
func profileText(p domain.Profile) string {
	return strings.Join([]string{
		p.FullName, p.Headline, string(p.ProfessionalType),
		p.City, p.State, strings.ReplaceAll(p.Services, ",", " "), p.Bio,
	}, " ")
}

func profileKey(id string) string { return "profile:" + id }

func directoryKey(gen int64, f repo.DirectoryFilter, q string, offset, limit int) string {
	h := sha1.Sum([]byte(strings.ToLower(strings.Join([]string{
		string(f.Type), strings.TrimSpace(f.City), strings.TrimSpace(f.State), strings.TrimSpace(q),
	}, "\x00"))))
	return fmt.Sprintf("%s:%d:%s:%d:%d", directoryNS, gen, hex.EncodeToString(h[:8]), offset, limit)
}
