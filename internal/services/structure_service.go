// internal/services/structure_service.go
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

// MinStructureContentLength is the shortest story that can be broken down.
const MinStructureContentLength = 500

// ActRatios split the runtime between the first three acts.
type ActRatios struct {
	Act1 float64 `json:"act1"`
	Act2 float64 `json:"act2"`
	Act3 float64 `json:"act3"`
}

// DurationConstraints are the structural limits of one runtime tier.
type DurationConstraints struct {
	FormatCategory       string    `json:"formatCategory"`
	StructureType        string    `json:"structureType"`
	MaxStoryBeats        int       `json:"maxStoryBeats"`
	MaxCharacters        int       `json:"maxCharacters"`
	MaxLocations         int       `json:"maxLocations"`
	MaxSubplots          int       `json:"maxSubplots"`
	BeatsPerMinute       float64   `json:"beatsPerMinute"`
	ActRatios            ActRatios `json:"actRatios"`
	ComplexityLevel      string    `json:"complexityLevel"`
	PacingGuidelines     []string  `json:"pacingGuidelines"`
	StructureDescription string    `json:"structureDescription"`
	TargetDuration       int       `json:"targetDuration"`
}

// GetDurationConstraints picks the tier for a runtime in minutes.
func GetDurationConstraints(durationUnit int) DurationConstraints {
	var c DurationConstraints
	switch {
	case durationUnit <= 2:
		c = DurationConstraints{
			FormatCategory: "Micro-format",
			StructureType:  "single-moment",
			MaxStoryBeats:  4, MaxCharacters: 2, MaxLocations: 1, MaxSubplots: 0,
			BeatsPerMinute:  2.0,
			ActRatios:       ActRatios{0.2, 0.6, 0.2},
			ComplexityLevel: "minimal",
			PacingGuidelines: []string{
				"Immediate story entry - no setup time",
				"Single moment/conflict focus",
				"Visual storytelling over dialogue",
				"Every second must advance core conflict",
			},
			StructureDescription: "Single Moment Structure: One dramatic moment/realization with immediate impact",
		}
	case durationUnit <= 5:
		c = DurationConstraints{
			FormatCategory: "Ultra-short",
			StructureType:  "compressed-three-act",
			MaxStoryBeats:  6, MaxCharacters: 3, MaxLocations: 2, MaxSubplots: 0,
			BeatsPerMinute:  1.2,
			ActRatios:       ActRatios{0.2, 0.6, 0.2},
			ComplexityLevel: "simple",
			PacingGuidelines: []string{
				"Quick setup with immediate conflict engagement",
				"Compressed three-act structure",
				"Essential dialogue only",
				"Single narrative thread",
			},
			StructureDescription: "Compressed Three-Act: Rapid three-act with immediate engagement",
		}
	case durationUnit <= 30:
		c = DurationConstraints{
			FormatCategory: "Short film",
			StructureType:  "traditional-three-act",
			MaxStoryBeats:  12, MaxCharacters: 5, MaxLocations: 4, MaxSubplots: 1,
			BeatsPerMinute:  0.4,
			ActRatios:       ActRatios{0.25, 0.5, 0.25},
			ComplexityLevel: "moderate",
			PacingGuidelines: []string{
				"Efficient setup with proper development time",
				"Traditional three-act with compressed arcs",
				"One minor subplot maximum",
				"Balanced character and plot development",
			},
			StructureDescription: "Traditional Three-Act: Classic beginning/middle/end with full character arc",
		}
	case durationUnit <= 60:
		c = DurationConstraints{
			FormatCategory: "Medium format",
			StructureType:  "five-act",
			MaxStoryBeats:  18, MaxCharacters: 8, MaxLocations: 8, MaxSubplots: 2,
			BeatsPerMinute: 0.3,
			// five acts run 20/25/10/25/20, only the first three are listed
			ActRatios:       ActRatios{0.2, 0.25, 0.25},
			ComplexityLevel: "moderate",
			PacingGuidelines: []string{
				"Full character development time",
				"Subplot integration with main narrative",
				"Building tension with proper pacing",
				"Character relationships drive story",
			},
			StructureDescription: "Five-Act Structure: Extended development with multiple turning points",
		}
	case durationUnit <= 120:
		c = DurationConstraints{
			FormatCategory: "Feature length",
			StructureType:  "save-the-cat",
			MaxStoryBeats:  15, MaxCharacters: 12, MaxLocations: 15, MaxSubplots: 3,
			BeatsPerMinute:  0.125,
			ActRatios:       ActRatios{0.25, 0.5, 0.25},
			ComplexityLevel: "complex",
			PacingGuidelines: []string{
				"Blake Snyder's proven 15-beat structure",
				"Precise timing for each story beat",
				"Complex character development",
				"Multiple subplot integration",
			},
			StructureDescription: "Save the Cat Beat Sheet: Blake Snyder's proven 15-beat Hollywood structure",
		}
	default:
		c = DurationConstraints{
			FormatCategory: "Extended format",
			StructureType:  "eight-sequence",
			MaxStoryBeats:  32, MaxCharacters: 20, MaxLocations: 25, MaxSubplots: 5,
			BeatsPerMinute:  0.13,
			ActRatios:       ActRatios{0.3, 0.45, 0.25},
			ComplexityLevel: "epic",
			PacingGuidelines: []string{
				"Eight mini-movies, each with its own arc",
				"Multiple climactic moments across sequences",
				"Expansive world-building and character development",
				"Sustained engagement across extended runtime",
			},
			StructureDescription: "Eight-Sequence Structure: Eight mini-movies creating epic scope",
		}
	}
	c.TargetDuration = durationUnit
	return c
}

// ComplianceResult is the outcome of checking a structure against its tier.
type ComplianceResult struct {
	IsCompliant        bool     `json:"isCompliant"`
	Warnings           []string `json:"warnings"`
	Recommendations    []string `json:"recommendations"`
	QualityAdjustments int      `json:"qualityAdjustments"`
}

// AdjustScore applies the penalties and clamps to 0..100.
func (r ComplianceResult) AdjustScore(score int) int {
	return clamp(score+r.QualityAdjustments, 0, 100)
}

// ValidateStoryStructureCompliance checks beat, act, subplot, character and
// pacing limits. Act durations in the analysis are minutes.
func ValidateStoryStructureCompliance(analysis *StructureAnalysis, constraints DurationConstraints, durationUnit int) ComplianceResult {
	result := ComplianceResult{Warnings: []string{}, Recommendations: []string{}}
	if durationUnit <= 0 {
		durationUnit = 1
	}

	beats := len(analysis.StoryBeats)
	if beats > constraints.MaxStoryBeats {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Too many story beats (%d) for %s format. Maximum recommended: %d", beats, constraints.FormatCategory, constraints.MaxStoryBeats))
		result.Recommendations = append(result.Recommendations, "Consolidate story beats to focus on essential narrative moments")
		result.QualityAdjustments -= 10
	}

	if len(analysis.AdaptiveActs) > 0 {
		total := 0
		for i, act := range analysis.AdaptiveActs {
			if i >= 3 {
				break
			}
			total += act.Duration
		}
		if float64(total) > float64(durationUnit)*1.1 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Act durations (%d min) exceed target duration (%d min)", total, durationUnit))
			result.Recommendations = append(result.Recommendations, fmt.Sprintf(
				"Compress act durations to fit %s constraints", constraints.FormatCategory))
			result.QualityAdjustments -= 15
		}
	}

	if subplots := len(analysis.Subplots); subplots > constraints.MaxSubplots {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Too many subplots (%d) for %s. Maximum: %d", subplots, constraints.FormatCategory, constraints.MaxSubplots))
		result.Recommendations = append(result.Recommendations, "Remove or consolidate subplots to maintain focus")
		result.QualityAdjustments -= 12
	}

	if characters := len(analysis.CharacterArcs); characters > constraints.MaxCharacters {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Too many main characters (%d) for %s. Maximum recommended: %d", characters, constraints.FormatCategory, constraints.MaxCharacters))
		result.Recommendations = append(result.Recommendations, "Focus on fewer characters with deeper development")
		result.QualityAdjustments -= 8
	}

	bpm := float64(beats) / float64(durationUnit)
	switch {
	case bpm > constraints.BeatsPerMinute*1.5:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Pacing too fast (%.1f beats/min) for sustainable storytelling", bpm))
		result.Recommendations = append(result.Recommendations, "Slow down pacing to allow for proper story development")
		result.QualityAdjustments -= 5
	case bpm < constraints.BeatsPerMinute*0.5:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Pacing too slow (%.1f beats/min) may lose audience engagement", bpm))
		result.Recommendations = append(result.Recommendations, "Increase story beat frequency to maintain engagement")
		result.QualityAdjustments -= 5
	}

	result.IsCompliant = len(result.Warnings) == 0
	return result
}

// fixedActShares are the stored act splits in seconds, independent of tier.
var fixedActShares = [3]float64{0.2, 0.6, 0.2}

// ActDurationSeconds returns the stored duration of act index for a runtime.
func ActDurationSeconds(index, durationUnit int) int {
	if index < 0 || index >= len(fixedActShares) {
		return 0
	}
	return int(math.Round(float64(durationUnit*60) * fixedActShares[index]))
}

// FallbackStructure builds a tier shaped breakdown without the LLM.
func FallbackStructure(constraints DurationConstraints) *StructureAnalysis {
	d := constraints.TargetDuration
	if d <= 0 {
		d = 1
	}

	acts := []models.AdaptiveAct{
		{ActNumber: 1, Name: "Setup", Description: "Introduce the protagonist, their world and what they want.",
			Duration: int(math.Round(float64(d) * constraints.ActRatios.Act1)),
			KeyEvents: []string{"Inciting incident", "Protagonist commits to the journey"}, Purpose: "Establish stakes"},
		{ActNumber: 2, Name: "Confrontation", Description: "Obstacles escalate and the protagonist is tested.",
			Duration: int(math.Round(float64(d) * constraints.ActRatios.Act2)),
			KeyEvents: []string{"Midpoint reversal", "All is lost"}, Purpose: "Escalate conflict"},
		{ActNumber: 3, Name: "Resolution", Description: "The protagonist changes and resolves the central conflict.",
			Duration: int(math.Round(float64(d) * constraints.ActRatios.Act3)),
			KeyEvents: []string{"Climax", "New equilibrium"}, Purpose: "Resolve the arc"},
	}

	beatCount := int(math.Round(constraints.BeatsPerMinute * float64(d)))
	if beatCount < 1 {
		beatCount = 1
	}
	if beatCount > constraints.MaxStoryBeats {
		beatCount = constraints.MaxStoryBeats
	}
	beats := make([]models.StoryBeat, beatCount)
	for i := range beats {
		beats[i] = models.StoryBeat{
			Beat:          fmt.Sprintf("Beat %d", i+1),
			Timing:        i * d / beatCount,
			Description:   "Story development moment",
			Characters:    []string{"Protagonist"},
			EmotionalTone: "building",
		}
	}

	arcs := []models.CharacterArc{{
		Character: "Protagonist", StartState: "Reluctant", EndState: "Transformed",
		Transformation: "Learns to act on what they believe", KeyMoments: []string{"Inciting incident", "Climax"},
	}}
	if constraints.MaxCharacters > 1 {
		arcs = append(arcs, models.CharacterArc{
			Character: "Antagonist", StartState: "In control", EndState: "Defeated",
			Transformation: "Loses the certainty that drove them",
		})
	}

	var subplots []models.Subplot
	if constraints.MaxSubplots > 0 {
		subplots = append(subplots, models.Subplot{
			Name: "B-story", Description: "A relationship that mirrors the theme", Resolution: "Resolved alongside the climax",
		})
	}

	return &StructureAnalysis{
		StructureType:   constraints.StructureType,
		AdaptiveActs:    acts,
		StoryBeats:      beats,
		CharacterArcs:   arcs,
		Subplots:        subplots,
		QualityScore:    60,
		GenerationNotes: "Generated from duration constraints because the AI service was unavailable.",
	}
}

// StructureService breaks stories into acts and beats.
type StructureService struct {
	DB         *gorm.DB
	Generation *GenerationService
	now        func() time.Time
}

func NewStructureService(db *gorm.DB, generation *GenerationService) *StructureService {
	return &StructureService{DB: db, Generation: generation, now: time.Now}
}

// Generate returns the existing structure (created=false) unless force is
// set, in which case it is replaced.
func (s *StructureService) Generate(ctx context.Context, projectID string, force bool) (*models.StoryStructure, bool, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, false, err
	}

	durationUnit := project.DurationUnit
	if durationUnit <= 0 {
		durationUnit = 90
	}
	constraints := GetDurationConstraints(durationUnit)

	logger := utils.GetLogger().Named("structure")
	logger.Info("generating story structure", map[string]interface{}{
		"project":          project.Name,
		"duration":         durationUnit,
		"format_category":  constraints.FormatCategory,
		"structure_type":   constraints.StructureType,
		"complexity_level": constraints.ComplexityLevel,
		"max_beats":        constraints.MaxStoryBeats,
	})

	var story models.Story
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&story).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.NewValidationError("No story found for this project. Please complete story development first.", nil)
		}
		return nil, false, err
	}
	if len(strings.TrimSpace(story.CurrentContent)) < MinStructureContentLength {
		return nil, false, apperrors.NewValidationError("Story content is too short for structure analysis. Please enhance the story first.", nil)
	}

	var existing models.StoryStructure
	err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&existing).Error
	switch {
	case err == nil && !force:
		return &existing, false, nil
	case err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	start := s.now()
	model := ""
	analysis, aiErr := s.Generation.AnalyzeStoryStructure(ctx, story.CurrentContent, &project, constraints)
	if aiErr != nil {
		classified := apperrors.ClassifyAIError(aiErr, "Failed to generate story structure")
		if apperrors.IsInsufficientCreditsError(classified) {
			return nil, false, classified
		}
		logger.Warn("structure analysis failed, using fallback", map[string]interface{}{
			"project_id": projectID,
			"error":      aiErr.Error(),
		})
		analysis = FallbackStructure(constraints)
		model = "fallback-template"
	} else {
		model = s.Generation.LLMService.GetDefaultModel()
	}
	processing := int64(s.now().Sub(start).Round(time.Second) / time.Second)

	compliance := ValidateStoryStructureCompliance(analysis, constraints, durationUnit)
	structure := buildStoryStructure(&project, &story, analysis, constraints, compliance, durationUnit)
	structure.GenerationMetadata = models.StructureGenerationMetadata{
		GeneratedAt:     s.now().UTC(),
		Model:           model,
		ProcessingTime:  processing,
		QualityScore:    compliance.AdjustScore(analysis.QualityScore),
		GenerationNotes: firstNonEmpty(analysis.GenerationNotes, "Generated via AI analysis"),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if force && existing.ID != "" {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		}
		return tx.Create(structure).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to save story structure: %w", err)
	}
	return structure, true, nil
}

func buildStoryStructure(project *models.Project, story *models.Story, analysis *StructureAnalysis, constraints DurationConstraints, compliance ComplianceResult, durationUnit int) *models.StoryStructure {
	structureType := firstNonEmpty(analysis.StructureType, "traditional-three-act")

	acts := make([]models.AdaptiveAct, len(analysis.AdaptiveActs))
	for i, act := range analysis.AdaptiveActs {
		acts[i] = act
		if i < len(fixedActShares) {
			acts[i].Duration = ActDurationSeconds(i, durationUnit)
		} else {
			acts[i].Duration = act.Duration * 60
		}
		if acts[i].ActNumber == 0 {
			acts[i].ActNumber = i + 1
		}
	}

	structure := &models.StoryStructure{
		ProjectID:              project.ID,
		StoryID:                story.ID,
		ProjectName:            firstNonEmpty(project.Name, "Untitled Project"),
		NarrativeStructureType: structureType,
		AdaptiveStructure:      models.AdaptiveStructure{StructureType: structureType, Acts: acts},
		StoryBeats:             nonNil(analysis.StoryBeats),
		CharacterArcs:          nonNil(analysis.CharacterArcs),
		Subplots:               nonNil(analysis.Subplots),
		Status:                 models.StructureStatusGenerated,
	}

	if len(acts) >= 3 {
		structure.ActStructure = models.ActStructure{
			Act1: models.Act1{
				Setup:            acts[0].Description,
				IncitingIncident: keyEvent(acts[0], 0),
				PlotPoint1:       keyEvent(acts[0], 1),
				Duration:         acts[0].Duration,
			},
			Act2: models.Act2{
				Confrontation: acts[1].Description,
				Midpoint:      keyEvent(acts[1], 0),
				PlotPoint2:    keyEvent(acts[1], 1),
				Duration:      acts[1].Duration,
			},
			Act3: models.Act3{
				Climax:        keyEvent(acts[2], 0),
				FallingAction: keyEvent(acts[2], 1),
				Resolution:    acts[2].Description,
				Duration:      acts[2].Duration,
			},
		}
	}

	structure.DurationCompliance = buildDurationCompliance(analysis, constraints, compliance, durationUnit)
	return structure
}

func buildDurationCompliance(analysis *StructureAnalysis, constraints DurationConstraints, compliance ComplianceResult, durationUnit int) models.DurationCompliance {
	beats := len(analysis.StoryBeats)
	return models.DurationCompliance{
		FormatCategory:  constraints.FormatCategory,
		TargetDuration:  durationUnit,
		IsCompliant:     compliance.IsCompliant,
		ComplexityLevel: constraints.ComplexityLevel,
		Constraints: models.ComplianceConstraints{
			MaxStoryBeats:   constraints.MaxStoryBeats,
			MaxCharacters:   constraints.MaxCharacters,
			MaxSubplots:     constraints.MaxSubplots,
			MaxLocations:    constraints.MaxLocations,
			BeatsPerMinute:  constraints.BeatsPerMinute,
			StructureType:   constraints.StructureType,
			ComplexityLevel: constraints.ComplexityLevel,
			FormatCategory:  constraints.FormatCategory,
			TargetDuration:  durationUnit,
		},
		ActualMetrics: models.ComplianceMetrics{
			StoryBeatsCount:       beats,
			CharacterCount:        len(analysis.CharacterArcs),
			SubplotCount:          len(analysis.Subplots),
			AverageBeatsPerMinute: float64(beats) / float64(durationUnit),
		},
		Warnings:         compliance.Warnings,
		Recommendations:  compliance.Recommendations,
		PacingGuidelines: constraints.PacingGuidelines,
	}
}

// analysisFromStructure rebuilds the compliance input from a stored
// structure. Stored act durations are seconds.
func analysisFromStructure(structure *models.StoryStructure) *StructureAnalysis {
	analysis := &StructureAnalysis{
		StructureType: structure.NarrativeStructureType,
		StoryBeats:    structure.StoryBeats,
		CharacterArcs: structure.CharacterArcs,
		Subplots:      structure.Subplots,
	}
	if acts := structure.ActStructure; acts.TotalDuration() > 0 {
		analysis.AdaptiveActs = []models.AdaptiveAct{
			{ActNumber: 1, Duration: acts.Act1.Duration / 60},
			{ActNumber: 2, Duration: acts.Act2.Duration / 60},
			{ActNumber: 3, Duration: acts.Act3.Duration / 60},
		}
	}
	return analysis
}

func keyEvent(act models.AdaptiveAct, i int) string {
	if i < len(act.KeyEvents) {
		return act.KeyEvents[i]
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Get returns the structure of a project.
func (s *StructureService) Get(ctx context.Context, projectID string) (*models.StoryStructure, error) {
	var structure models.StoryStructure
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&structure).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("No story structure found for this project", err)
		}
		return nil, err
	}
	return &structure, nil
}

// StructureUpdate carries the editable parts of a structure. Nil fields are kept.
type StructureUpdate struct {
	ActStructure  *models.ActStructure  `json:"actStructure"`
	StoryBeats    []models.StoryBeat    `json:"storyBeats"`
	CharacterArcs []models.CharacterArc `json:"characterArcs"`
	Subplots      []models.Subplot      `json:"subplots"`
	Status        string                `json:"status"`
}

var validStructureStatuses = map[string]bool{
	models.StructureStatusGenerated:     true,
	models.StructureStatusReviewed:      true,
	models.StructureStatusApproved:      true,
	models.StructureStatusNeedsRevision: true,
}

// Update applies manual edits to a project's structure and recomputes its
// duration compliance against the project runtime.
func (s *StructureService) Update(ctx context.Context, projectID string, update StructureUpdate) (*models.StoryStructure, error) {
	structure, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, err
	}

	durationUnit := project.DurationUnit
	if durationUnit <= 0 {
		durationUnit = 90
	}
	constraints := GetDurationConstraints(durationUnit)

	// Stored scores already carry the penalties of the previous version.
	previousUnit := structure.DurationCompliance.TargetDuration
	if previousUnit <= 0 {
		previousUnit = durationUnit
	}
	previous := ValidateStoryStructureCompliance(analysisFromStructure(structure), GetDurationConstraints(previousUnit), previousUnit)
	baseScore := structure.GenerationMetadata.QualityScore - previous.QualityAdjustments

	if update.Status != "" {
		if !validStructureStatuses[update.Status] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid structure status %q", update.Status), nil)
		}
		structure.Status = update.Status
	}
	if update.ActStructure != nil {
		structure.ActStructure = *update.ActStructure
	}
	if update.StoryBeats != nil {
		structure.StoryBeats = update.StoryBeats
	}
	if update.CharacterArcs != nil {
		structure.CharacterArcs = update.CharacterArcs
	}
	if update.Subplots != nil {
		structure.Subplots = update.Subplots
	}

	analysis := analysisFromStructure(structure)
	compliance := ValidateStoryStructureCompliance(analysis, constraints, durationUnit)
	structure.DurationCompliance = buildDurationCompliance(analysis, constraints, compliance, durationUnit)
	structure.GenerationMetadata.QualityScore = compliance.AdjustScore(baseScore)

	if err := s.DB.WithContext(ctx).Save(structure).Error; err != nil {
		return nil, fmt.Errorf("failed to update story structure: %w", err)
	}
	return structure, nil
}
