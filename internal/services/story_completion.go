// internal/services/story_completion.go
package services

import (
	"strings"

	"github.com/novelmovie/novelmovie/internal/models"
)

// QualityThreshold is the score every sub metric must reach for a story to
// count as production ready.
const QualityThreshold = 8

// EnhancementRecommendation tells the client what it can do next.
type EnhancementRecommendation struct {
	CanComplete    bool   `json:"canComplete"`
	CanContinue    bool   `json:"canContinue"`
	Recommendation string `json:"recommendation"`
}

// MeetsQualityCriteria reports whether all nine sub metrics are at least 8.
// A missing metric counts as zero.
func MeetsQualityCriteria(metrics *models.QualityMetrics) bool {
	if metrics == nil {
		return false
	}
	for _, name := range models.SubMetricNames {
		score, _ := metrics.Get(name)
		if score < QualityThreshold {
			return false
		}
	}
	return true
}

// MeetsStepCriteria reports whether the full enhancement cycle has run.
func MeetsStepCriteria(currentStep int) bool {
	return currentStep >= models.MaxEnhancementSteps
}

func hasContent(story *models.Story) bool {
	return strings.TrimSpace(story.CurrentContent) != ""
}

// IsStoryReadyForCompletion: content present AND (12 steps OR quality).
func IsStoryReadyForCompletion(story *models.Story) bool {
	if story == nil || !hasContent(story) {
		return false
	}
	return MeetsStepCriteria(story.CurrentStep) || MeetsQualityCriteria(&story.QualityMetrics)
}

// GetStoryCompletionStatus returns completed or in-progress.
func GetStoryCompletionStatus(story *models.Story) string {
	if IsStoryReadyForCompletion(story) {
		return models.StoryStatusCompleted
	}
	return models.StoryStatusInProgress
}

func GetCompletionReason(story *models.Story) string {
	if !IsStoryReadyForCompletion(story) {
		return "Story not yet ready for completion"
	}

	meetsSteps := MeetsStepCriteria(story.CurrentStep)
	meetsQuality := MeetsQualityCriteria(&story.QualityMetrics)

	switch {
	case meetsSteps && meetsQuality:
		return "Story completed: Full enhancement cycle AND excellent quality"
	case meetsSteps:
		return "Story completed: Full enhancement cycle (12 steps)"
	default:
		return "Story completed: Excellent quality (all metrics ≥8)"
	}
}

// CanContinueEnhancing is true until the last step.
func CanContinueEnhancing(currentStep int) bool {
	return currentStep < models.MaxEnhancementSteps
}

func GetEnhancementRecommendation(story *models.Story) EnhancementRecommendation {
	canComplete := IsStoryReadyForCompletion(story)
	canContinue := story != nil && CanContinueEnhancing(story.CurrentStep)

	rec := EnhancementRecommendation{CanComplete: canComplete, CanContinue: canContinue}
	switch {
	case canComplete && canContinue:
		rec.Recommendation = "Your story is ready for screenplay generation! You can proceed now or continue enhancing if desired."
	case canComplete:
		rec.Recommendation = "Your story is complete and ready for screenplay generation."
	case canContinue:
		rec.Recommendation = "Continue enhancing your story to improve quality or reach completion."
	default:
		rec.Recommendation = "Story enhancement cycle is complete."
	}
	return rec
}
