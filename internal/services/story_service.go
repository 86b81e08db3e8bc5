// internal/services/story_service.go
package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

// EnhancementFocus is what one enhancement step works on.
type EnhancementFocus struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	TargetMetric string `json:"targetMetric"`
}

var enhancementSteps = map[int]EnhancementFocus{
	4:  {"Story Structure", "Improved narrative flow and pacing", models.MetricStructureScore},
	5:  {"Character Development", "Enhanced character depth and motivations", models.MetricCharacterDepth},
	6:  {"Story Coherence", "Better plot consistency and logical flow", models.MetricCoherenceScore},
	7:  {"Conflict & Tension", "Heightened dramatic tension and stakes", models.MetricConflictTension},
	8:  {"Dialogue Quality", "More natural and engaging dialogue", models.MetricDialogueQuality},
	9:  {"Genre Alignment", "Better adherence to genre conventions", models.MetricGenreAlignment},
	10: {"Audience Engagement", "Enhanced emotional connection and relatability", models.MetricAudienceEngagement},
	11: {"Visual Storytelling", "Improved cinematic descriptions and visual elements", models.MetricVisualStorytelling},
	12: {"Production Readiness", "Final polish for production requirements", models.MetricProductionReadiness},
}

// GetEnhancementFocus returns the focus for a step.
func GetEnhancementFocus(step int) EnhancementFocus {
	if focus, ok := enhancementSteps[step]; ok {
		return focus
	}
	return EnhancementFocus{"General Enhancement", "Overall story improvement", models.MetricOverallQuality}
}

// qualityWeights sum to 1.
var qualityWeights = map[string]float64{
	models.MetricStructureScore:      0.20,
	models.MetricCharacterDepth:      0.18,
	models.MetricCoherenceScore:      0.15,
	models.MetricConflictTension:     0.12,
	models.MetricDialogueQuality:     0.10,
	models.MetricGenreAlignment:      0.10,
	models.MetricAudienceEngagement:  0.08,
	models.MetricVisualStorytelling:  0.04,
	models.MetricProductionReadiness: 0.03,
}

// WeightedOverallQuality rounds the weighted sum. Missing metrics count as 0.
func WeightedOverallQuality(metrics models.QualityMetrics) int {
	total := 0.0
	for _, name := range models.SubMetricNames {
		if v, ok := metrics.Get(name); ok {
			total += float64(v) * qualityWeights[name]
		}
	}
	return int(math.Round(total))
}

// ApplyEnhancement raises the focus metric by gain (capped at 10) and
// recomputes the overall quality. An unset focus metric stays unset.
func ApplyEnhancement(current models.QualityMetrics, focus EnhancementFocus, gain int) models.QualityMetrics {
	next := current.Clone()
	if value, ok := next.Get(focus.TargetMetric); ok {
		next.Set(focus.TargetMetric, min(value+gain, 10))
	}
	next.Set(models.MetricOverallQuality, WeightedOverallQuality(next))
	return next
}

var enhancementAnnotations = map[string]string{
	"Story Structure": `**ENHANCED STRUCTURE:**
- Refined three-act structure with clearer turning points
- Improved pacing with better balance of action and reflection
- Stronger scene transitions and narrative flow
- More compelling opening hook and satisfying conclusion`,
	"Character Development": `**ENHANCED CHARACTERS:**
- Deeper character backstories and motivations
- More distinct character voices and personalities
- Stronger character arcs with meaningful growth
- Better character relationships and dynamics`,
	"Story Coherence": `**ENHANCED COHERENCE:**
- Resolved plot inconsistencies and logical gaps
- Improved cause-and-effect relationships
- Better foreshadowing and payoff moments
- Clearer story logic and world-building rules`,
	"Conflict & Tension": `**ENHANCED TENSION:**
- Heightened stakes and consequences
- More compelling obstacles and challenges
- Better conflict escalation throughout the story
- Stronger emotional and physical jeopardy`,
	"Dialogue Quality": `**ENHANCED DIALOGUE:**
- More natural and character-specific speech patterns
- Better subtext and emotional depth in conversations
- Improved dialogue tags and action beats
- Stronger conflict and revelation through dialogue`,
	"Visual Storytelling": `**ENHANCED VISUALS:**
- More vivid and cinematic scene descriptions
- Better use of visual metaphors and symbolism
- Improved action sequences and visual flow
- Stronger atmosphere and mood through imagery`,
}

// AnnotateEnhancement appends a deterministic note for the focus area.
func AnnotateEnhancement(content string, focus EnhancementFocus) string {
	body, ok := enhancementAnnotations[focus.Name]
	if !ok {
		body = "**ENHANCED CONTENT:**\nGeneral improvements applied to enhance overall story quality."
	}
	return fmt.Sprintf("%s\n\n**[ENHANCEMENT - %s]**\n%s\n\n%s", content, focus.Name, focus.Description, body)
}

// StoryService generates, enhances and completes stories.
type StoryService struct {
	DB          *gorm.DB
	Generation  *GenerationService
	lockManager *LockManager
	roll        func() int
	now         func() time.Time
}

func NewStoryService(db *gorm.DB, generation *GenerationService, locks *LockManager) *StoryService {
	if locks == nil {
		locks = NewLockManager()
	}
	return &StoryService{
		DB:          db,
		Generation:  generation,
		lockManager: locks,
		roll:        func() int { return rand.IntN(2) + 1 },
		now:         time.Now,
	}
}

// SetGainSource replaces the 1-or-2 metric gain roll.
func (s *StoryService) SetGainSource(roll func() int) {
	s.roll = roll
}

// ==================== Generation ====================

// Generate returns the project's story, creating it on first call.
func (s *StoryService) Generate(ctx context.Context, projectID, conceptID string) (*models.Story, bool, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(conceptID) == "" {
		return nil, false, apperrors.NewValidationError("Project ID and Initial Concept ID are required", nil)
	}

	db := s.DB.WithContext(ctx)

	var concept models.InitialConcept
	if err := db.First(&concept, "id = ?", conceptID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.NewNotFoundError("Initial concept not found", err)
		}
		return nil, false, err
	}

	var project models.Project
	if err := db.First(&project, "id = ?", projectID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, false, err
	}
	if concept.ProjectID != project.ID {
		return nil, false, apperrors.NewValidationError("Initial concept does not belong to this project", nil)
	}

	var existing models.Story
	err := db.Where("project_id = ?", projectID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	validation := ValidateProjectForStory(&project)
	if !validation.IsValid {
		return nil, false, apperrors.NewValidationError("Project missing required fields for story generation", nil).
			WithDetails(map[string]interface{}{"missingFields": validation.MissingFields})
	}

	logger := utils.GetLogger().Named("story")
	for _, warning := range validation.Warnings {
		logger.Debug("story generation warning", map[string]interface{}{"project_id": projectID, "warning": warning})
	}

	data := ExtractProjectStoryData(&project, &concept)
	draft, genErr := s.Generation.GenerateStory(ctx, data)
	if genErr != nil {
		logger.Warn("story generation failed, using fallback", map[string]interface{}{
			"project_id": projectID,
			"error":      genErr.Error(),
		})
		draft = FallbackStory(data)
	}

	params, _ := json.Marshal(map[string]interface{}{
		"model":       draft.Model,
		"temperature": storyTemperature,
		"maxTokens":   storyMaxTokens,
		"prompt":      storyPromptName,
	})

	story := &models.Story{
		ProjectID:            project.ID,
		ProjectName:          firstNonEmpty(project.Name, "Unknown Project"),
		CurrentContent:       draft.Content,
		CurrentStep:          models.InitialStoryStep,
		Status:               models.StoryStatusInProgress,
		QualityMetrics:       InitialStoryMetrics(),
		EnhancementHistory:   []models.EnhancementEntry{},
		GenerationParameters: datatypes.JSON(params),
	}
	if err := db.Create(story).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create story: %w", err)
	}

	logger.Info("story generated", map[string]interface{}{
		"story_id":      story.ID,
		"project_id":    projectID,
		"used_fallback": draft.UsedFallback,
	})
	return story, true, nil
}

// ==================== CRUD ====================

// StoryListOptions filters the story list.
type StoryListOptions struct {
	ListOptions
	ProjectID string
}

func (s *StoryService) List(ctx context.Context, opts StoryListOptions) (*PageResult[models.Story], error) {
	query := s.DB.WithContext(ctx).Model(&models.Story{})
	if opts.ProjectID != "" {
		query = query.Where("project_id = ?", opts.ProjectID)
	}
	return paginate[models.Story](query, opts.ListOptions)
}

func (s *StoryService) Get(ctx context.Context, id string) (*models.Story, error) {
	var story models.Story
	if err := s.DB.WithContext(ctx).First(&story, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Story not found", err)
		}
		return nil, err
	}
	return &story, nil
}

// StoryPatch holds the editable story fields. Nil fields are kept.
type StoryPatch struct {
	CurrentContent *string                `json:"currentContent"`
	Status         *string                `json:"status"`
	CurrentStep    *int                   `json:"currentStep"`
	QualityMetrics *models.QualityMetrics `json:"qualityMetrics"`
}

var validStoryStatuses = map[string]bool{
	models.StoryStatusInProgress:  true,
	models.StoryStatusPaused:      true,
	models.StoryStatusCompleted:   true,
	models.StoryStatusNeedsReview: true,
	models.StoryStatusApproved:    true,
}

// Validate checks ranges and enums.
func (p StoryPatch) Validate() error {
	if p.CurrentContent != nil && strings.TrimSpace(*p.CurrentContent) == "" {
		return apperrors.NewValidationError("currentContent cannot be empty", nil)
	}
	if p.Status != nil && !validStoryStatuses[*p.Status] {
		return apperrors.NewValidationError(fmt.Sprintf("invalid story status %q", *p.Status), nil)
	}
	if p.CurrentStep != nil && (*p.CurrentStep < 1 || *p.CurrentStep > models.MaxEnhancementSteps) {
		return apperrors.NewValidationError("currentStep must be between 1 and 12", nil)
	}
	if p.QualityMetrics != nil {
		for _, name := range append([]string{models.MetricOverallQuality}, models.SubMetricNames...) {
			if v, ok := p.QualityMetrics.Get(name); ok && (v < 0 || v > 10) {
				return apperrors.NewValidationError(fmt.Sprintf("%s must be between 0 and 10", name), nil)
			}
		}
	}
	return nil
}

func (s *StoryService) Patch(ctx context.Context, id string, patch StoryPatch) (*models.Story, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var story *models.Story
	err := s.lockManager.WithLock("story:"+id, func() error {
		var err error
		story, err = s.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.CurrentContent != nil {
			story.CurrentContent = *patch.CurrentContent
		}
		if patch.Status != nil {
			story.Status = *patch.Status
		}
		if patch.CurrentStep != nil {
			story.CurrentStep = *patch.CurrentStep
		}
		if patch.QualityMetrics != nil {
			story.QualityMetrics = patch.QualityMetrics.Clone()
			story.QualityMetrics.Set(models.MetricOverallQuality, WeightedOverallQuality(story.QualityMetrics))
		}
		return s.DB.WithContext(ctx).Save(story).Error
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

func (s *StoryService) Delete(ctx context.Context, id string) error {
	result := s.DB.WithContext(ctx).Delete(&models.Story{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("Story not found", nil)
	}
	return nil
}

// ==================== Enhancement ====================

// Enhance runs the next enhancement step. Calls on one story are serialized.
func (s *StoryService) Enhance(ctx context.Context, id string) (*models.Story, error) {
	var story *models.Story
	err := s.lockManager.WithLock("story:"+id, func() error {
		var err error
		story, err = s.Get(ctx, id)
		if err != nil {
			return err
		}
		return s.enhanceLocked(ctx, story)
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

func (s *StoryService) enhanceLocked(ctx context.Context, story *models.Story) error {
	nextStep := story.CurrentStep + 1
	if nextStep > models.MaxEnhancementSteps {
		nextStep = models.MaxEnhancementSteps
	}
	focus := GetEnhancementFocus(nextStep)

	content, err := s.Generation.EnhanceStory(ctx, story.CurrentContent, focus, story.QualityMetrics)
	if err != nil {
		utils.GetLogger().Named("story").Warn("enhancement rewrite failed, annotating instead", map[string]interface{}{
			"story_id": story.ID,
			"focus":    focus.Name,
			"error":    err.Error(),
		})
		content = AnnotateEnhancement(story.CurrentContent, focus)
	}

	gain := s.roll()
	if gain < 1 {
		gain = 1
	} else if gain > 2 {
		gain = 2
	}
	before := story.QualityMetrics
	after := ApplyEnhancement(before, focus, gain)

	beforeOverall, _ := before.Get(models.MetricOverallQuality)
	afterOverall, _ := after.Get(models.MetricOverallQuality)
	entry := models.EnhancementEntry{
		Step:          nextStep,
		FocusArea:     focus.Name,
		Timestamp:     s.now().UTC(),
		QualityBefore: beforeOverall,
		QualityAfter:  afterOverall,
		Changes:       focus.Description,
	}

	history := append(append([]models.EnhancementEntry{}, story.EnhancementHistory...), entry)
	if len(history) > models.MaxEnhancementSteps {
		history = history[len(history)-models.MaxEnhancementSteps:]
	}

	story.CurrentContent = content
	story.CurrentStep = nextStep
	story.QualityMetrics = after
	story.EnhancementHistory = history
	if story.Status != models.StoryStatusCompleted {
		story.Status = GetStoryCompletionStatus(story)
	}

	if err := s.DB.WithContext(ctx).Save(story).Error; err != nil {
		return fmt.Errorf("failed to save enhanced story: %w", err)
	}
	return nil
}

// ==================== Completion ====================

// CompletionResult is returned when a story is marked complete.
type CompletionResult struct {
	Story            *models.Story `json:"story"`
	CompletionReason string        `json:"completionReason"`
	Message          string        `json:"message"`
}

// CompletionStatus is the read-only completion report.
type CompletionStatus struct {
	StoryID              string                `json:"storyId"`
	CurrentStep          int                   `json:"currentStep"`
	Status               string                `json:"status"`
	QualityMetrics       models.QualityMetrics `json:"qualityMetrics"`
	IsReadyForCompletion bool                  `json:"isReadyForCompletion"`
	CompletionReason     string                `json:"completionReason"`
	Recommendation       string                `json:"recommendation"`
	CanComplete          bool                  `json:"canComplete"`
	CanContinue          bool                  `json:"canContinue"`
}

// Complete marks a ready story completed. A story that is not ready yields a
// validation error whose details explain why.
func (s *StoryService) Complete(ctx context.Context, id string) (*CompletionResult, error) {
	var result *CompletionResult
	err := s.lockManager.WithLock("story:"+id, func() error {
		story, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		if !IsStoryReadyForCompletion(story) {
			rec := GetEnhancementRecommendation(story)
			return apperrors.NewValidationError("Story not ready for completion", nil).WithDetails(map[string]interface{}{
				"reason":         "Story does not meet completion criteria",
				"recommendation": rec.Recommendation,
				"canContinue":    rec.CanContinue,
				"currentStep":    story.CurrentStep,
				"qualityMetrics": story.QualityMetrics,
			})
		}

		reason := GetCompletionReason(story)
		story.Status = models.StoryStatusCompleted
		if err := s.DB.WithContext(ctx).Model(story).Update("status", models.StoryStatusCompleted).Error; err != nil {
			return fmt.Errorf("failed to complete story: %w", err)
		}

		result = &CompletionResult{
			Story:            story,
			CompletionReason: reason,
			Message:          "Story marked as completed and ready for screenplay generation",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StoryService) CompletionStatus(ctx context.Context, id string) (*CompletionStatus, error) {
	story, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := GetEnhancementRecommendation(story)
	return &CompletionStatus{
		StoryID:              story.ID,
		CurrentStep:          story.CurrentStep,
		Status:               story.Status,
		QualityMetrics:       story.QualityMetrics,
		IsReadyForCompletion: IsStoryReadyForCompletion(story),
		CompletionReason:     GetCompletionReason(story),
		Recommendation:       rec.Recommendation,
		CanComplete:          rec.CanComplete,
		CanContinue:          rec.CanContinue,
	}, nil
}
