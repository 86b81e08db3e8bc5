// internal/models/story_structure.go
package models

import "time"

// story structure statuses
const (
	StructureStatusGenerated     = "generated"
	StructureStatusReviewed      = "reviewed"
	StructureStatusApproved      = "approved"
	StructureStatusNeedsRevision = "needs-revision"
)

// Act1 is the setup act.
type Act1 struct {
	Setup            string `json:"setup"`
	IncitingIncident string `json:"incitingIncident"`
	PlotPoint1       string `json:"plotPoint1"`
	Duration         int    `json:"duration"`
}

// Act2 is the confrontation act.
type Act2 struct {
	Confrontation string `json:"confrontation"`
	Midpoint      string `json:"midpoint"`
	PlotPoint2    string `json:"plotPoint2"`
	Duration      int    `json:"duration"`
}

// Act3 is the resolution act.
type Act3 struct {
	Climax        string `json:"climax"`
	FallingAction string `json:"fallingAction"`
	Resolution    string `json:"resolution"`
	Duration      int    `json:"duration"`
}

// ActStructure holds the three acts. Durations are seconds.
type ActStructure struct {
	Act1 Act1 `json:"act1"`
	Act2 Act2 `json:"act2"`
	Act3 Act3 `json:"act3"`
}

// TotalDuration returns the sum of the act durations in seconds.
func (a ActStructure) TotalDuration() int {
	return a.Act1.Duration + a.Act2.Duration + a.Act3.Duration
}

type StoryBeat struct {
	Beat          string   `json:"beat"`
	Timing        int      `json:"timing"`
	Description   string   `json:"description"`
	Characters    []string `json:"characters"`
	EmotionalTone string   `json:"emotionalTone"`
}

type CharacterArc struct {
	Character      string   `json:"character"`
	StartState     string   `json:"startState"`
	EndState       string   `json:"endState"`
	Transformation string   `json:"transformation"`
	KeyMoments     []string `json:"keyMoments"`
}

type Subplot struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Resolution         string   `json:"resolution"`
	CharactersInvolved []string `json:"charactersInvolved"`
}

// AdaptiveAct is one act of the duration driven structure.
type AdaptiveAct struct {
	ActNumber   int      `json:"actNumber"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Duration    int      `json:"duration"`
	KeyEvents   []string `json:"keyEvents"`
	Purpose     string   `json:"purpose"`
}

// AdaptiveStructure describes the structure chosen for the runtime tier.
type AdaptiveStructure struct {
	StructureType string        `json:"structureType"`
	Acts          []AdaptiveAct `json:"acts"`
}

type StructureGenerationMetadata struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	Model           string    `json:"model,omitempty"`
	ProcessingTime  int64     `json:"processingTime"`
	QualityScore    int       `json:"qualityScore"`
	GenerationNotes string    `json:"generationNotes,omitempty"`
}

type ComplianceConstraints struct {
	MaxStoryBeats   int     `json:"maxStoryBeats"`
	MaxCharacters   int     `json:"maxCharacters"`
	MaxSubplots     int     `json:"maxSubplots"`
	MaxLocations    int     `json:"maxLocations"`
	BeatsPerMinute  float64 `json:"beatsPerMinute"`
	StructureType   string  `json:"structureType"`
	ComplexityLevel string  `json:"complexityLevel"`
	FormatCategory  string  `json:"formatCategory"`
	TargetDuration  int     `json:"targetDuration"`
}

type ComplianceMetrics struct {
	StoryBeatsCount       int     `json:"storyBeatsCount"`
	CharacterCount        int     `json:"characterCount"`
	SubplotCount          int     `json:"subplotCount"`
	AverageBeatsPerMinute float64 `json:"averageBeatsPerMinute"`
}

// DurationCompliance records how well a structure fits its runtime tier.
type DurationCompliance struct {
	FormatCategory   string                `json:"formatCategory"`
	TargetDuration   int                   `json:"targetDuration"`
	IsCompliant      bool                  `json:"isCompliant"`
	ComplexityLevel  string                `json:"complexityLevel"`
	Constraints      ComplianceConstraints `json:"constraints"`
	ActualMetrics    ComplianceMetrics     `json:"actualMetrics"`
	Warnings         []string              `json:"warnings"`
	Recommendations  []string              `json:"recommendations"`
	PacingGuidelines []string              `json:"pacingGuidelines"`
}

// StoryStructure is the act and beat breakdown of a story. One per project.
type StoryStructure struct {
	BaseModel

	ProjectID              string                      `gorm:"type:varchar(36);not null;uniqueIndex" json:"project"`
	StoryID                string                      `gorm:"type:varchar(36);index" json:"story"`
	ProjectName            string                      `json:"projectName"`
	NarrativeStructureType string                      `json:"narrativeStructureType"`
	AdaptiveStructure      AdaptiveStructure           `gorm:"serializer:json;type:text" json:"adaptiveStructure"`
	ActStructure           ActStructure                `gorm:"serializer:json;type:text" json:"actStructure"`
	StoryBeats             []StoryBeat                 `gorm:"serializer:json;type:text" json:"storyBeats"`
	CharacterArcs          []CharacterArc              `gorm:"serializer:json;type:text" json:"characterArcs"`
	Subplots               []Subplot                   `gorm:"serializer:json;type:text" json:"subplots"`
	GenerationMetadata     StructureGenerationMetadata `gorm:"serializer:json;type:text" json:"generationMetadata"`
	DurationCompliance     DurationCompliance          `gorm:"serializer:json;type:text" json:"durationCompliance"`
	Status                 string                      `gorm:"not null;default:generated" json:"status"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
