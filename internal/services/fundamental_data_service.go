// internal/services/fundamental_data_service.go
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
)

const (
	maxInspirationalMovies = 5
	earliestMovieYear      = 1900
	futureMovieYears       = 5
)

var (
	validDominance = map[string]bool{
		"":                            true,
		models.DominanceWarm:          true,
		models.DominanceCool:          true,
		models.DominanceBalanced:      true,
		models.DominanceMonochromatic: true,
	}
	validSaturation = map[string]bool{
		"":                           true,
		models.SaturationHigh:        true,
		models.SaturationMedium:      true,
		models.SaturationLow:         true,
		models.SaturationDesaturated: true,
	}
)

// FundamentalDataService keeps the creative groundwork document of a project.
type FundamentalDataService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewFundamentalDataService(db *gorm.DB) *FundamentalDataService {
	return &FundamentalDataService{DB: db, now: time.Now}
}

// FundamentalDataInput replaces every section of the document.
type FundamentalDataInput struct {
	VisualStyle         models.VisualStyle         `json:"visualStyle"`
	References          models.FilmReferences      `json:"references"`
	CharacterArchetypes models.CharacterArchetypes `json:"characterArchetypes"`
	Themes              models.ThemeNotes          `json:"themes"`
	Setting             models.Setting             `json:"setting"`
	Pacing              models.Pacing              `json:"pacing"`
	ContentGuidelines   models.ContentGuidelines   `json:"contentGuidelines"`
}

// Validate returns one message per invalid field.
func (in FundamentalDataInput) Validate(now time.Time) []string {
	var problems []string
	palette := in.VisualStyle.ColorPalette
	if !validDominance[palette.Dominance] {
		problems = append(problems, fmt.Sprintf("visualStyle.colorPalette.dominance: invalid value %q", palette.Dominance))
	}
	if !validSaturation[palette.Saturation] {
		problems = append(problems, fmt.Sprintf("visualStyle.colorPalette.saturation: invalid value %q", palette.Saturation))
	}

	movies := in.References.InspirationalMovies
	if len(movies) > maxInspirationalMovies {
		problems = append(problems, fmt.Sprintf("references.inspirationalMovies: at most %d movies", maxInspirationalMovies))
	}
	latest := now.Year() + futureMovieYears
	for i, movie := range movies {
		if movie.Title == "" {
			problems = append(problems, fmt.Sprintf("references.inspirationalMovies[%d].title: required", i))
		}
		if movie.Year != 0 && (movie.Year < earliestMovieYear || movie.Year > latest) {
			problems = append(problems, fmt.Sprintf("references.inspirationalMovies[%d].year: must be between %d and %d", i, earliestMovieYear, latest))
		}
	}
	return problems
}

func (s *FundamentalDataService) Get(ctx context.Context, projectID string) (*models.FundamentalData, error) {
	var data models.FundamentalData
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&data).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Fundamental data not found", err)
		}
		return nil, err
	}
	return &data, nil
}

// Upsert stores the document of a project, creating it on first write. The
// project name is copied from the project.
func (s *FundamentalDataService) Upsert(ctx context.Context, projectID string, in FundamentalDataInput) (*models.FundamentalData, bool, error) {
	if problems := in.Validate(s.now()); len(problems) > 0 {
		return nil, false, apperrors.NewValidationError("Invalid fundamental data", nil).
			WithDetails(map[string]interface{}{"fields": problems})
	}

	var (
		data    models.FundamentalData
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("Project not found", err)
			}
			return err
		}

		created = tx.Where("project_id = ?", projectID).Limit(1).Find(&data).RowsAffected == 0
		data.ProjectID = project.ID
		data.ProjectName = project.Name
		data.VisualStyle = in.VisualStyle
		data.References = in.References
		data.CharacterArchetypes = in.CharacterArchetypes
		data.Themes = in.Themes
		data.Themes.CentralThemes = compactIDs(in.Themes.CentralThemes)
		data.Setting = in.Setting
		data.Pacing = in.Pacing
		data.ContentGuidelines = in.ContentGuidelines
		if created {
			return tx.Create(&data).Error
		}
		return tx.Save(&data).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to save fundamental data: %w", err)
	}
	return &data, created, nil
}

func (s *FundamentalDataService) Delete(ctx context.Context, projectID string) error {
	result := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.FundamentalData{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete fundamental data: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("Fundamental data not found", nil)
	}
	return nil
}
