// internal/models/story.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// story statuses
const (
	StoryStatusInProgress  = "in-progress"
	StoryStatusPaused      = "paused"
	StoryStatusCompleted   = "completed"
	StoryStatusNeedsReview = "needs-review"
	StoryStatusApproved    = "approved"
)

// MaxEnhancementSteps is the last step of the enhancement cycle.
const MaxEnhancementSteps = 12

// InitialStoryStep is the step a freshly generated story starts at.
const InitialStoryStep = 3

// QualityMetrics holds the story scores, each 0-10. Nil means not yet scored.
type QualityMetrics struct {
	OverallQuality      *int `json:"overallQuality,omitempty"`
	StructureScore      *int `json:"structureScore,omitempty"`
	CharacterDepth      *int `json:"characterDepth,omitempty"`
	CoherenceScore      *int `json:"coherenceScore,omitempty"`
	ConflictTension     *int `json:"conflictTension,omitempty"`
	DialogueQuality     *int `json:"dialogueQuality,omitempty"`
	GenreAlignment      *int `json:"genreAlignment,omitempty"`
	AudienceEngagement  *int `json:"audienceEngagement,omitempty"`
	VisualStorytelling  *int `json:"visualStorytelling,omitempty"`
	ProductionReadiness *int `json:"productionReadiness,omitempty"`
}

// Metric names as used in enhancement entries and API payloads.
const (
	MetricOverallQuality      = "overallQuality"
	MetricStructureScore      = "structureScore"
	MetricCharacterDepth      = "characterDepth"
	MetricCoherenceScore      = "coherenceScore"
	MetricConflictTension     = "conflictTension"
	MetricDialogueQuality     = "dialogueQuality"
	MetricGenreAlignment      = "genreAlignment"
	MetricAudienceEngagement  = "audienceEngagement"
	MetricVisualStorytelling  = "visualStorytelling"
	MetricProductionReadiness = "productionReadiness"
)

// SubMetricNames lists the nine scores the overall quality is weighted from.
var SubMetricNames = []string{
	MetricStructureScore,
	MetricCharacterDepth,
	MetricCoherenceScore,
	MetricConflictTension,
	MetricDialogueQuality,
	MetricGenreAlignment,
	MetricAudienceEngagement,
	MetricVisualStorytelling,
	MetricProductionReadiness,
}

// Field returns a pointer to the slot for name, or nil for an unknown name.
func (q *QualityMetrics) Field(name string) **int {
	switch name {
	case MetricOverallQuality:
		return &q.OverallQuality
	case MetricStructureScore:
		return &q.StructureScore
	case MetricCharacterDepth:
		return &q.CharacterDepth
	case MetricCoherenceScore:
		return &q.CoherenceScore
	case MetricConflictTension:
		return &q.ConflictTension
	case MetricDialogueQuality:
		return &q.DialogueQuality
	case MetricGenreAlignment:
		return &q.GenreAlignment
	case MetricAudienceEngagement:
		return &q.AudienceEngagement
	case MetricVisualStorytelling:
		return &q.VisualStorytelling
	case MetricProductionReadiness:
		return &q.ProductionReadiness
	}
	return nil
}

// Get returns the value of a metric and whether it is set.
func (q *QualityMetrics) Get(name string) (int, bool) {
	slot := q.Field(name)
	if slot == nil || *slot == nil {
		return 0, false
	}
	return **slot, true
}

// Set stores a metric value. Unknown names are ignored.
func (q *QualityMetrics) Set(name string, value int) {
	if slot := q.Field(name); slot != nil {
		v := value
		*slot = &v
	}
}

// Clone returns a deep copy.
func (q QualityMetrics) Clone() QualityMetrics {
	out := QualityMetrics{}
	for _, name := range append([]string{MetricOverallQuality}, SubMetricNames...) {
		if v, ok := q.Get(name); ok {
			out.Set(name, v)
		}
	}
	return out
}

// IsEmpty reports whether no metric has been scored.
func (q QualityMetrics) IsEmpty() bool {
	for _, name := range append([]string{MetricOverallQuality}, SubMetricNames...) {
		if _, ok := q.Get(name); ok {
			return false
		}
	}
	return true
}

// IntPtr is a small helper for building metrics literals.
func IntPtr(v int) *int { return &v }

// EnhancementEntry records one enhancement step.
type EnhancementEntry struct {
	Step          int       `json:"step"`
	FocusArea     string    `json:"focusArea"`
	Timestamp     time.Time `json:"timestamp"`
	QualityBefore int       `json:"qualityBefore"`
	QualityAfter  int       `json:"qualityAfter"`
	Changes       string    `json:"changes"`
}

// Story is the generated narrative of a project. One per project.
type Story struct {
	BaseModel

	ProjectID            string             `gorm:"type:varchar(36);not null;uniqueIndex" json:"project"`
	ProjectName          string             `json:"projectName"`
	CurrentContent       string             `gorm:"type:text;not null" json:"currentContent"`
	CurrentStep          int                `gorm:"not null;default:3" json:"currentStep"`
	Status               string             `gorm:"not null;default:in-progress;index" json:"status"`
	QualityMetrics       QualityMetrics     `gorm:"embedded;embeddedPrefix:quality_" json:"qualityMetrics"`
	EnhancementHistory   []EnhancementEntry `gorm:"serializer:json;type:text" json:"enhancementHistory"`
	GenerationParameters datatypes.JSON     `json:"generationParameters,omitempty"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
