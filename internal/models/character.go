// internal/models/character.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// character roles
const (
	RoleProtagonist = "protagonist"
	RoleAntagonist  = "antagonist"
	RoleSupporting  = "supporting"
	RoleMinor       = "minor"
)

// character generation statuses
const (
	GenerationPending       = "pending"
	GenerationGenerated     = "generated"
	GenerationImagesCreated = "images_created"
	GenerationComplete      = "complete"
	GenerationFailed        = "failed"
)

// LibraryAssets tracks images held by the character library.
type LibraryAssets struct {
	MasterReferencePublicURL string `json:"masterReferencePublicUrl,omitempty"`
	CoreSetGenerated         bool   `json:"coreSetGenerated"`
	CoreSetCount             int    `json:"coreSetCount"`
}

// CharacterGenerationMetadata describes how a character was produced.
type CharacterGenerationMetadata struct {
	GeneratedAt            *time.Time     `json:"generatedAt,omitempty"`
	LastImageUpdate        *time.Time     `json:"lastImageUpdate,omitempty"`
	ErrorMessage           string         `json:"errorMessage,omitempty"`
	GenerationMethod       string         `json:"generationMethod,omitempty"`
	QualityScore           int            `json:"qualityScore,omitempty"`
	Completeness           int            `json:"completeness,omitempty"`
	CharacterLibraryStatus string         `json:"characterLibraryStatus,omitempty"`
	LastSyncAt             *time.Time     `json:"lastSyncAt,omitempty"`
	BAMLData               datatypes.JSON `json:"bamlData,omitempty"`
}

// CharacterReference links a project character to its character library record.
type CharacterReference struct {
	BaseModel

	ProjectID            string                      `gorm:"type:varchar(36);not null;index" json:"project"`
	ProjectCharacterName string                      `gorm:"not null" json:"projectCharacterName"`
	LibraryCharacterID   string                      `gorm:"index" json:"libraryCharacterId,omitempty"`
	LibraryDBID          string                      `json:"libraryDbId,omitempty"`
	CharacterRole        string                      `gorm:"not null;default:supporting" json:"characterRole"`
	GenerationStatus     string                      `gorm:"not null;default:pending" json:"generationStatus"`
	DialogueVoice        string                      `gorm:"type:text" json:"dialogueVoice,omitempty"`
	LibraryAssets        LibraryAssets               `gorm:"serializer:json;type:text" json:"libraryAssets"`
	GenerationMetadata   CharacterGenerationMetadata `gorm:"serializer:json;type:text" json:"generationMetadata"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// image kinds
const (
	ImageKindReference     = "reference"
	ImageKindPortfolioItem = "portfolioItem"
	ImageKindScene         = "scene"
)

// image statuses
const (
	ImageStatusSucceeded = "succeeded"
	ImageStatusFailed    = "failed"
)

// ProviderCharacterLibrary is the default image provider.
const ProviderCharacterLibrary = "character-library"

// CharacterImageMetadata records one generated image of a character.
type CharacterImageMetadata struct {
	BaseModel

	CharacterReferenceID string         `gorm:"type:varchar(36);not null;index" json:"characterReference"`
	MediaID              *string        `gorm:"type:varchar(36);index" json:"media,omitempty"`
	Kind                 string         `gorm:"not null" json:"kind"`
	Provider             string         `gorm:"not null;default:character-library" json:"provider"`
	Prompt               string         `gorm:"type:text" json:"prompt,omitempty"`
	SourceURL            string         `json:"sourceUrl,omitempty"`
	ExternalID           string         `json:"externalId,omitempty"`
	Status               string         `gorm:"not null;default:succeeded" json:"status"`
	Error                string         `gorm:"type:text" json:"error,omitempty"`
	Metrics              datatypes.JSON `json:"metrics,omitempty"`

	CharacterReference *CharacterReference `gorm:"foreignKey:CharacterReferenceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Media              *Media              `gorm:"foreignKey:MediaID;constraint:OnDelete:SET NULL" json:"mediaRecord,omitempty"`
}
