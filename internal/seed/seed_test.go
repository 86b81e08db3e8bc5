package seed

import (
	"context"
	"testing"

	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeedParses(t *testing.T) {
	file, err := Parse(Default())
	require.NoError(t, err)
	for _, kind := range models.AllTaxonomies {
		assert.NotEmpty(t, file[kind], string(kind))
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte("planets:\n  - {name: Mars, slug: mars}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("genres:\n  - {name: Drama}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("genres: [unclosed"))
	assert.Error(t, err)
}

func TestRunIsIdempotent(t *testing.T) {
	conn, err := db.OpenTest()
	require.NoError(t, err)
	defer db.Close(conn)

	file, err := Parse([]byte(`
genres:
  - {name: Drama, slug: drama, sortOrder: 1}
  - {name: Western, slug: western, inactive: true}
movie-formats:
  - {name: Feature Film, slug: feature-film, suggestedDuration: 90}
`))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := Run(ctx, conn, file)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created[models.TaxonomyGenres])
	assert.Equal(t, 1, first.Created[models.TaxonomyMovieFormats])

	second, err := Run(ctx, conn, file)
	require.NoError(t, err)
	assert.Zero(t, second.Created[models.TaxonomyGenres])
	assert.Equal(t, 2, second.Skipped[models.TaxonomyGenres])

	var western models.Genre
	require.NoError(t, conn.Where("slug = ?", "western").First(&western).Error)
	assert.False(t, western.IsActive)

	var format models.MovieFormat
	require.NoError(t, conn.Where("slug = ?", "feature-film").First(&format).Error)
	assert.Equal(t, 90, format.SuggestedDuration)
}
