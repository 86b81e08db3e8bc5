// internal/models/fundamental_data.go
package models

// color palette enums
const (
	DominanceWarm          = "warm"
	DominanceCool          = "cool"
	DominanceBalanced      = "balanced"
	DominanceMonochromatic = "monochromatic"

	SaturationHigh        = "high"
	SaturationMedium      = "medium"
	SaturationLow         = "low"
	SaturationDesaturated = "desaturated"
)

type ColorPalette struct {
	Dominance      string `json:"dominance,omitempty"`
	Saturation     string `json:"saturation,omitempty"`
	SymbolicColors string `json:"symbolicColors,omitempty"`
}

type VisualStyle struct {
	CinematographyStyle []string     `json:"cinematographyStyle,omitempty"`
	ColorPalette        ColorPalette `json:"colorPalette"`
	LightingPreferences string       `json:"lightingPreferences,omitempty"`
	CameraMovement      string       `json:"cameraMovement,omitempty"`
}

type InspirationalMovie struct {
	Title            string `json:"title"`
	Year             int    `json:"year,omitempty"`
	SpecificElements string `json:"specificElements,omitempty"`
}

type FilmReferences struct {
	InspirationalMovies []InspirationalMovie `json:"inspirationalMovies,omitempty"`
	VisualReferences    string               `json:"visualReferences,omitempty"`
	NarrativeReferences string               `json:"narrativeReferences,omitempty"`
}

type CharacterArchetypes struct {
	ProtagonistType      []string `json:"protagonistType,omitempty"`
	SupportingRoles      []string `json:"supportingRoles,omitempty"`
	RelationshipDynamics string   `json:"relationshipDynamics,omitempty"`
}

type ThemeNotes struct {
	CentralThemes   []string `json:"centralThemes,omitempty"`
	MoralQuestions  string   `json:"moralQuestions,omitempty"`
	MessageTakeaway string   `json:"messageTakeaway,omitempty"`
}

type Setting struct {
	TimePeriod        string `json:"timePeriod,omitempty"`
	GeographicSetting string `json:"geographicSetting,omitempty"`
	SocialContext     string `json:"socialContext,omitempty"`
	Scale             string `json:"scale,omitempty"`
}

type Pacing struct {
	NarrativeStructure string `json:"narrativeStructure,omitempty"`
	PacingStyle        string `json:"pacingStyle,omitempty"`
	ClimaxIntensity    string `json:"climaxIntensity,omitempty"`
}

type ContentGuidelines struct {
	ContentRestrictions   []string `json:"contentRestrictions,omitempty"`
	CulturalSensitivities string   `json:"culturalSensitivities,omitempty"`
	EducationalValue      string   `json:"educationalValue,omitempty"`
}

// FundamentalData holds the creative groundwork of a project, one per project.
type FundamentalData struct {
	BaseModel

	ProjectID           string              `gorm:"type:varchar(36);not null;uniqueIndex" json:"project"`
	ProjectName         string              `json:"projectName"`
	VisualStyle         VisualStyle         `gorm:"serializer:json;type:text" json:"visualStyle"`
	References          FilmReferences      `gorm:"serializer:json;type:text" json:"references"`
	CharacterArchetypes CharacterArchetypes `gorm:"serializer:json;type:text" json:"characterArchetypes"`
	Themes              ThemeNotes          `gorm:"serializer:json;type:text" json:"themes"`
	Setting             Setting             `gorm:"serializer:json;type:text" json:"setting"`
	Pacing              Pacing              `gorm:"serializer:json;type:text" json:"pacing"`
	ContentGuidelines   ContentGuidelines   `gorm:"serializer:json;type:text" json:"contentGuidelines"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName keeps the collection name of the API.
func (FundamentalData) TableName() string { return "fundamental_data" }
