package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/llm/llmtest"
	"github.com/novelmovie/novelmovie/internal/models"
)

func newTestFundamentals(t *testing.T) *FundamentalDataService {
	t.Helper()
	svc := NewFundamentalDataService(newTestDB(t))
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestFundamentalDataUpsert(t *testing.T) {
	svc := newTestFundamentals(t)
	ctx := context.Background()
	project := createProject(t, svc.DB)

	in := FundamentalDataInput{
		VisualStyle: models.VisualStyle{ColorPalette: models.ColorPalette{Dominance: models.DominanceCool, Saturation: models.SaturationLow}},
		References: models.FilmReferences{InspirationalMovies: []models.InspirationalMovie{
			{Title: "Chinatown", Year: 1974, SpecificElements: "harbor politics"},
		}},
		Themes: models.ThemeNotes{CentralThemes: []string{"betrayal", " "}},
	}
	data, created, err := svc.Upsert(ctx, project.ID, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Glass Harbor", data.ProjectName)
	assert.Equal(t, []string{"betrayal"}, data.Themes.CentralThemes)

	in.Setting.TimePeriod = "1970s"
	updated, created, err := svc.Upsert(ctx, project.ID, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, data.ID, updated.ID)

	stored, err := svc.Get(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "1970s", stored.Setting.TimePeriod)
	assert.Equal(t, "Chinatown", stored.References.InspirationalMovies[0].Title)

	require.NoError(t, svc.Delete(ctx, project.ID))
	_, err = svc.Get(ctx, project.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.True(t, apperrors.IsNotFoundError(svc.Delete(ctx, project.ID)))
}

func TestFundamentalDataValidation(t *testing.T) {
	svc := newTestFundamentals(t)
	ctx := context.Background()
	project := createProject(t, svc.DB)

	movies := make([]models.InspirationalMovie, 6)
	for i := range movies {
		movies[i] = models.InspirationalMovie{Title: "Heat", Year: 1995}
	}
	movies[0].Year = 2031
	movies[1].Title = ""

	_, _, err := svc.Upsert(ctx, project.ID, FundamentalDataInput{
		VisualStyle: models.VisualStyle{ColorPalette: models.ColorPalette{Dominance: "neon", Saturation: "loud"}},
		References:  models.FilmReferences{InspirationalMovies: movies},
	})
	require.True(t, apperrors.IsValidationError(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	fields := appErr.Details.(map[string]interface{})["fields"].([]string)
	assert.Equal(t, []string{
		`visualStyle.colorPalette.dominance: invalid value "neon"`,
		`visualStyle.colorPalette.saturation: invalid value "loud"`,
		"references.inspirationalMovies: at most 5 movies",
		"references.inspirationalMovies[0].year: must be between 1900 and 2030",
		"references.inspirationalMovies[1].title: required",
	}, fields)

	_, _, err = svc.Upsert(ctx, "missing", FundamentalDataInput{})
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestProjectDeleteRemovesFundamentalData(t *testing.T) {
	svc := newTestProjects(t, llmtest.NewProvider())
	ctx := context.Background()
	project := createProject(t, svc.DB)

	_, _, err := NewFundamentalDataService(svc.DB).Upsert(ctx, project.ID, FundamentalDataInput{})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, project.ID))

	var count int64
	svc.DB.Model(&models.FundamentalData{}).Count(&count)
	assert.Zero(t, count)
}
