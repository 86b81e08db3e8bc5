// internal/models/taxonomy.go
package models

// Taxonomy is the shape shared by the reference collections.
type Taxonomy struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	IsActive    bool   `gorm:"not null;default:true" json:"isActive"`
	SortOrder   int    `gorm:"not null;default:0" json:"sortOrder"`
}

type Genre struct{ Taxonomy }
type ToneOption struct{ Taxonomy }
type MovieStyle struct{ Taxonomy }
type Series struct{ Taxonomy }
type AudienceDemographic struct{ Taxonomy }
type CentralTheme struct{ Taxonomy }
type MoodDescriptor struct{ Taxonomy }
type CinematographyStyle struct{ Taxonomy }

// MovieFormat also carries a suggested runtime in minutes.
type MovieFormat struct {
	Taxonomy
	SuggestedDuration int `json:"suggestedDuration,omitempty"`
}

// TableName keeps the plural of series readable.
func (Series) TableName() string { return "series" }

// TaxonomyKind names a reference collection as it appears in URLs and seed files.
type TaxonomyKind string

const (
	TaxonomyGenres               TaxonomyKind = "genres"
	TaxonomyToneOptions          TaxonomyKind = "tone-options"
	TaxonomyMovieFormats         TaxonomyKind = "movie-formats"
	TaxonomyMovieStyles          TaxonomyKind = "movie-styles"
	TaxonomySeries               TaxonomyKind = "series"
	TaxonomyAudienceDemographics TaxonomyKind = "audience-demographics"
	TaxonomyCentralThemes        TaxonomyKind = "central-themes"
	TaxonomyMoodDescriptors      TaxonomyKind = "mood-descriptors"
	TaxonomyCinematographyStyles TaxonomyKind = "cinematography-styles"
)

// AllTaxonomies lists every reference collection.
var AllTaxonomies = []TaxonomyKind{
	TaxonomyGenres,
	TaxonomyToneOptions,
	TaxonomyMovieFormats,
	TaxonomyMovieStyles,
	TaxonomySeries,
	TaxonomyAudienceDemographics,
	TaxonomyCentralThemes,
	TaxonomyMoodDescriptors,
	TaxonomyCinematographyStyles,
}

// NewTaxonomyModel returns an empty row value for kind, or nil when unknown.
func NewTaxonomyModel(kind TaxonomyKind) interface{} {
	switch kind {
	case TaxonomyGenres:
		return &Genre{}
	case TaxonomyToneOptions:
		return &ToneOption{}
	case TaxonomyMovieFormats:
		return &MovieFormat{}
	case TaxonomyMovieStyles:
		return &MovieStyle{}
	case TaxonomySeries:
		return &Series{}
	case TaxonomyAudienceDemographics:
		return &AudienceDemographic{}
	case TaxonomyCentralThemes:
		return &CentralTheme{}
	case TaxonomyMoodDescriptors:
		return &MoodDescriptor{}
	case TaxonomyCinematographyStyles:
		return &CinematographyStyle{}
	}
	return nil
}
