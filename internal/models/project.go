// internal/models/project.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// project statuses
const (
	ProjectStatusDraft      = "draft"
	ProjectStatusInProgress = "in-progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusArchived   = "archived"
)

// Project is the root of every pre-production workflow.
// MovieFormat, MovieStyle, Series and the list fields hold taxonomy slugs.
type Project struct {
	BaseModel

	Name             string   `gorm:"not null" json:"name"`
	ProjectTitle     string   `json:"projectTitle"`
	ShortDescription string   `gorm:"type:text" json:"shortDescription"`
	LongDescription  string   `gorm:"type:text" json:"longDescription"`
	MovieFormat      string   `gorm:"not null" json:"movieFormat"`
	MovieStyle       string   `gorm:"not null" json:"movieStyle"`
	Series           string   `json:"series,omitempty"`
	DurationUnit     int      `gorm:"not null;default:90" json:"durationUnit"`
	PrimaryGenres    []string `gorm:"serializer:json;type:text" json:"primaryGenres"`
	CorePremise      string   `gorm:"type:text" json:"corePremise"`
	TargetAudience   []string `gorm:"serializer:json;type:text" json:"targetAudience"`
	Tone             []string `gorm:"serializer:json;type:text" json:"tone"`
	Status           string   `gorm:"not null;default:draft;index" json:"status"`
}

// initial concept statuses
const (
	ConceptStatusDraft       = "draft"
	ConceptStatusAIGenerated = "ai-generated"
	ConceptStatusUserRefined = "user-refined"
	ConceptStatusReady       = "ready"
	ConceptStatusApproved    = "approved"
)

// ConceptModification records a user edit to an AI generated field.
type ConceptModification struct {
	Field         string    `json:"field"`
	ModifiedAt    time.Time `json:"modifiedAt"`
	OriginalValue string    `json:"originalValue"`
	NewValue      string    `json:"newValue"`
}

// ConceptAIMetadata describes how a concept was generated.
type ConceptAIMetadata struct {
	GeneratedAt       *time.Time            `json:"generatedAt,omitempty"`
	GenerationModel   string                `json:"generationModel,omitempty"`
	UserModifications []ConceptModification `json:"userModifications,omitempty"`
}

// InitialConcept is the creative brief a story is generated from. One per project.
type InitialConcept struct {
	BaseModel

	ProjectID      string            `gorm:"type:varchar(36);not null;uniqueIndex" json:"project"`
	ProjectName    string            `json:"projectName"`
	Title          string            `json:"title"`
	Status         string            `gorm:"not null;default:draft" json:"status"`
	PrimaryGenres  []string          `gorm:"serializer:json;type:text" json:"primaryGenres"`
	CorePremise    string            `gorm:"type:text" json:"corePremise"`
	Tone           []string          `gorm:"serializer:json;type:text" json:"tone"`
	TargetAudience []string          `gorm:"serializer:json;type:text" json:"targetAudience"`
	Themes         []string          `gorm:"serializer:json;type:text" json:"themes"`
	AIMetadata     ConceptAIMetadata `gorm:"serializer:json;type:text" json:"aiMetadata"`
	Extra          datatypes.JSON    `json:"extra,omitempty"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
