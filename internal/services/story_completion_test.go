package services

import (
	"testing"

	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/stretchr/testify/assert"
)

func allMetrics(score int) models.QualityMetrics {
	var q models.QualityMetrics
	for _, name := range models.SubMetricNames {
		q.Set(name, score)
	}
	return q
}

func TestMeetsQualityCriteria(t *testing.T) {
	assert.False(t, MeetsQualityCriteria(nil))

	q := allMetrics(8)
	assert.True(t, MeetsQualityCriteria(&q))

	q.Set(models.MetricVisualStorytelling, 7)
	assert.False(t, MeetsQualityCriteria(&q))

	missing := allMetrics(9)
	missing.ProductionReadiness = nil
	assert.False(t, MeetsQualityCriteria(&missing))

	// overall quality is not one of the nine
	q = allMetrics(10)
	q.Set(models.MetricOverallQuality, 1)
	assert.True(t, MeetsQualityCriteria(&q))
}

func TestIsStoryReadyForCompletion(t *testing.T) {
	tests := []struct {
		name    string
		story   models.Story
		ready   bool
		reason  string
		canCont bool
		advice  string
	}{
		{
			name:    "fresh story",
			story:   models.Story{CurrentContent: "Once", CurrentStep: 3, QualityMetrics: allMetrics(5)},
			ready:   false,
			reason:  "Story not yet ready for completion",
			canCont: true,
			advice:  "Continue enhancing your story to improve quality or reach completion.",
		},
		{
			name:    "full cycle",
			story:   models.Story{CurrentContent: "Once", CurrentStep: 12, QualityMetrics: allMetrics(5)},
			ready:   true,
			reason:  "Story completed: Full enhancement cycle (12 steps)",
			canCont: false,
			advice:  "Your story is complete and ready for screenplay generation.",
		},
		{
			name:    "excellent quality early",
			story:   models.Story{CurrentContent: "Once", CurrentStep: 7, QualityMetrics: allMetrics(8)},
			ready:   true,
			reason:  "Story completed: Excellent quality (all metrics ≥8)",
			canCont: true,
			advice:  "Your story is ready for screenplay generation! You can proceed now or continue enhancing if desired.",
		},
		{
			name:    "both",
			story:   models.Story{CurrentContent: "Once", CurrentStep: 12, QualityMetrics: allMetrics(9)},
			ready:   true,
			reason:  "Story completed: Full enhancement cycle AND excellent quality",
			canCont: false,
			advice:  "Your story is complete and ready for screenplay generation.",
		},
		{
			name:    "blank content never completes",
			story:   models.Story{CurrentContent: "   \n", CurrentStep: 12, QualityMetrics: allMetrics(10)},
			ready:   false,
			reason:  "Story not yet ready for completion",
			canCont: false,
			advice:  "Story enhancement cycle is complete.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			story := tt.story
			assert.Equal(t, tt.ready, IsStoryReadyForCompletion(&story))
			assert.Equal(t, tt.reason, GetCompletionReason(&story))

			rec := GetEnhancementRecommendation(&story)
			assert.Equal(t, tt.ready, rec.CanComplete)
			assert.Equal(t, tt.canCont, rec.CanContinue)
			assert.Equal(t, tt.advice, rec.Recommendation)

			want := models.StoryStatusInProgress
			if tt.ready {
				want = models.StoryStatusCompleted
			}
			assert.Equal(t, want, GetStoryCompletionStatus(&story))
		})
	}
}

func TestStepCriteria(t *testing.T) {
	assert.False(t, MeetsStepCriteria(11))
	assert.True(t, MeetsStepCriteria(12))
	assert.True(t, CanContinueEnhancing(11))
	assert.False(t, CanContinueEnhancing(12))
	assert.False(t, IsStoryReadyForCompletion(nil))
}
