// internal/services/taxonomy_service.go
package services

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"gorm.io/gorm"
)

const taxonomyListLimit = 100

// TaxonomyService reads the reference collections that drive project and
// concept form options.
type TaxonomyService struct {
	DB *gorm.DB
}

func NewTaxonomyService(db *gorm.DB) *TaxonomyService {
	return &TaxonomyService{DB: db}
}

// newTaxonomySlice returns a pointer to an empty slice of kind's row type.
func newTaxonomySlice(kind models.TaxonomyKind) (interface{}, error) {
	model := models.NewTaxonomyModel(kind)
	if model == nil {
		return nil, apperrors.NewNotFoundError("Unknown collection: "+string(kind), nil)
	}
	elem := reflect.TypeOf(model).Elem()
	return reflect.New(reflect.SliceOf(elem)).Interface(), nil
}

// List returns the active rows of kind, ordered by sortOrder then name.
func (s *TaxonomyService) List(ctx context.Context, kind models.TaxonomyKind) (interface{}, int, error) {
	rows, err := newTaxonomySlice(kind)
	if err != nil {
		return nil, 0, err
	}

	if err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Order("name ASC").
		Limit(taxonomyListLimit).
		Find(rows).Error; err != nil {
		return nil, 0, apperrors.WrapError(err, "failed to list "+string(kind), apperrors.ErrorTypeError)
	}

	value := reflect.ValueOf(rows).Elem()
	return value.Interface(), value.Len(), nil
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// TaxonomySlug derives the slug a taxonomy row gets from its name.
func TaxonomySlug(name string) string {
	return strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// activeTaxonomyRows returns the shared columns of kind's active rows.
func activeTaxonomyRows(ctx context.Context, db *gorm.DB, kind models.TaxonomyKind, limit int) ([]models.Taxonomy, error) {
	model := models.NewTaxonomyModel(kind)
	if model == nil {
		return nil, apperrors.NewNotFoundError("Unknown collection: "+string(kind), nil)
	}
	query := db.WithContext(ctx).Model(model).Where("is_active = ?", true).Order("sort_order ASC").Order("name ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Taxonomy
	if err := query.Find(&rows).Error; err != nil {
		return nil, apperrors.WrapError(err, "failed to list "+string(kind), apperrors.ErrorTypeError)
	}
	return rows, nil
}

// ResolveTaxonomySlugs maps generated names onto existing active rows of
// kind by case-insensitive name or slug. Unmatched names are dropped, or
// stored as new rows when create is set.
func ResolveTaxonomySlugs(ctx context.Context, db *gorm.DB, kind models.TaxonomyKind, names []string, create bool, category string) ([]string, error) {
	rows, err := activeTaxonomyRows(ctx, db, kind, 0)
	if err != nil {
		return nil, err
	}

	var slugs []string
	seen := map[string]bool{}
	add := func(slug string) {
		if !seen[slug] {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := TaxonomySlug(name)
		if slug == "" {
			continue
		}
		matched := false
		for _, row := range rows {
			if strings.EqualFold(row.Name, name) || row.Slug == slug {
				add(row.Slug)
				matched = true
				break
			}
		}
		if matched || !create {
			continue
		}

		model := models.NewTaxonomyModel(kind)
		reflect.ValueOf(model).Elem().FieldByName("Taxonomy").Set(reflect.ValueOf(models.Taxonomy{
			Name:        name,
			Slug:        slug,
			Description: fmt.Sprintf("AI-generated %s: %s", kindLabel(kind), name),
			Category:    category,
			IsActive:    true,
			SortOrder:   generatedSortOrder,
		}))
		if err := db.WithContext(ctx).Create(model).Error; err != nil {
			return nil, fmt.Errorf("failed to create %s %q: %w", kind, name, err)
		}
		rows = append(rows, models.Taxonomy{Name: name, Slug: slug})
		add(slug)
	}
	return slugs, nil
}

// TaxonomyNames returns the names of the rows with the given slugs, keeping
// unknown slugs as they are.
func TaxonomyNames(ctx context.Context, db *gorm.DB, kind models.TaxonomyKind, slugs []string) []string {
	if len(slugs) == 0 {
		return nil
	}
	rows, err := activeTaxonomyRows(ctx, db, kind, 0)
	if err != nil {
		return slugs
	}
	bySlug := make(map[string]string, len(rows))
	for _, row := range rows {
		bySlug[row.Slug] = row.Name
	}
	names := make([]string, len(slugs))
	for i, slug := range slugs {
		names[i] = firstNonEmpty(bySlug[slug], slug)
	}
	return names
}

const generatedSortOrder = 999

func kindLabel(kind models.TaxonomyKind) string {
	return strings.TrimSuffix(strings.ReplaceAll(string(kind), "-", " "), "s")
}

// SmartDefaults are the first active options of each concept list field.
type SmartDefaults struct {
	PrimaryGenres  []string `json:"primaryGenres"`
	TargetAudience struct {
		Demographics []string `json:"demographics"`
	} `json:"targetAudience"`
	ToneAndMood struct {
		Tones []string `json:"tones"`
		Moods []string `json:"moods"`
	} `json:"toneAndMood"`
	Themes struct {
		CentralThemes []string `json:"centralThemes"`
	} `json:"themes"`
}

// SmartDefaults picks three genres and one audience, tone, mood and theme
// by sort order.
func (s *TaxonomyService) SmartDefaults(ctx context.Context) (*SmartDefaults, error) {
	pick := func(kind models.TaxonomyKind, n int) ([]string, error) {
		rows, err := activeTaxonomyRows(ctx, s.DB, kind, n)
		if err != nil {
			return nil, err
		}
		slugs := make([]string, 0, len(rows))
		for _, row := range rows {
			slugs = append(slugs, row.Slug)
		}
		return slugs, nil
	}

	var (
		out SmartDefaults
		err error
	)
	if out.PrimaryGenres, err = pick(models.TaxonomyGenres, 3); err != nil {
		return nil, err
	}
	if out.TargetAudience.Demographics, err = pick(models.TaxonomyAudienceDemographics, 1); err != nil {
		return nil, err
	}
	if out.ToneAndMood.Tones, err = pick(models.TaxonomyToneOptions, 1); err != nil {
		return nil, err
	}
	if out.ToneAndMood.Moods, err = pick(models.TaxonomyMoodDescriptors, 1); err != nil {
		return nil, err
	}
	if out.Themes.CentralThemes, err = pick(models.TaxonomyCentralThemes, 1); err != nil {
		return nil, err
	}
	return &out, nil
}
