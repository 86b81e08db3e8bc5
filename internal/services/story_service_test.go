package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/llm/llmtest"
	"github.com/novelmovie/novelmovie/internal/models"
)

func TestWeightedOverallQuality(t *testing.T) {
	assert.Equal(t, 6, WeightedOverallQuality(InitialStoryMetrics()))
	assert.Equal(t, 10, WeightedOverallQuality(allMetrics(10)))
	assert.Equal(t, 0, WeightedOverallQuality(models.QualityMetrics{}))
}

func TestApplyEnhancement(t *testing.T) {
	focus := GetEnhancementFocus(4)
	assert.Equal(t, "Story Structure", focus.Name)

	after := ApplyEnhancement(InitialStoryMetrics(), focus, 2)
	v, _ := after.Get(models.MetricStructureScore)
	assert.Equal(t, 8, v)
	overall, _ := after.Get(models.MetricOverallQuality)
	assert.Equal(t, 6, overall)

	capped := ApplyEnhancement(allMetrics(10), focus, 2)
	v, _ = capped.Get(models.MetricStructureScore)
	assert.Equal(t, 10, v)

	missing := InitialStoryMetrics()
	missing.DialogueQuality = nil
	unchanged := ApplyEnhancement(missing, GetEnhancementFocus(8), 1)
	_, ok := unchanged.Get(models.MetricDialogueQuality)
	assert.False(t, ok, "unset metric stays unset")
	overall, _ = unchanged.Get(models.MetricOverallQuality)
	assert.Equal(t, WeightedOverallQuality(missing), overall)

	general := GetEnhancementFocus(3)
	assert.Equal(t, "General Enhancement", general.Name)
	assert.Equal(t, models.MetricOverallQuality, general.TargetMetric)
}

func TestGenerateStory(t *testing.T) {
	conn := newTestDB(t)
	provider := llmtest.NewProvider("**Act I**\nThe fog rolls in.")
	svc := NewStoryService(conn, newTestGeneration(provider), newTestLocks(t))
	ctx := context.Background()

	project := createProject(t, conn)
	concept := createConcept(t, conn, project)

	story, created, err := svc.Generate(ctx, project.ID, concept.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "**Act I**\nThe fog rolls in.", story.CurrentContent)
	assert.Equal(t, models.InitialStoryStep, story.CurrentStep)
	assert.Equal(t, models.StoryStatusInProgress, story.Status)
	assert.Equal(t, 6, WeightedOverallQuality(story.QualityMetrics))
	assert.Contains(t, string(story.GenerationParameters), `"maxTokens":2000`)

	prompt := provider.Requests[0].Prompt
	assert.Contains(t, prompt, "thriller, drama", "concept genres win")

	again, created, err := svc.Generate(ctx, project.ID, concept.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, story.ID, again.ID)
	assert.Equal(t, 1, provider.Calls())
}

func TestGenerateStoryFallback(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.Failing(errors.New("OpenRouter API error (500): boom"))), newTestLocks(t))

	project := createProject(t, conn, func(p *models.Project) { p.Tone = nil })
	concept := createConcept(t, conn, project)

	story, created, err := svc.Generate(context.Background(), project.ID, concept.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, strings.HasPrefix(story.CurrentContent, "**PROJECT:** Glass Harbor"))
	assert.Contains(t, story.CurrentContent, "**Act I - Setup**")
	assert.Contains(t, story.CurrentContent, "**TONE:** Balanced")
	assert.Contains(t, string(story.GenerationParameters), "fallback-template")
}

func TestGenerateStoryValidation(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.NewProvider("x")), newTestLocks(t))
	ctx := context.Background()

	_, _, err := svc.Generate(ctx, "", "c")
	assert.True(t, apperrors.IsValidationError(err))

	project := createProject(t, conn)
	_, _, err = svc.Generate(ctx, project.ID, "missing")
	assert.True(t, apperrors.IsNotFoundError(err))

	other := createProject(t, conn, func(p *models.Project) { p.Name = "Other" })
	concept := createConcept(t, conn, other)
	_, _, err = svc.Generate(ctx, project.ID, concept.ID)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGenerateStoryReturnsExistingForIncompleteProject(t *testing.T) {
	conn := newTestDB(t)
	provider := llmtest.NewProvider("unused")
	svc := NewStoryService(conn, newTestGeneration(provider), newTestLocks(t))

	project := createProject(t, conn)
	concept := createConcept(t, conn, project)
	story := createStory(t, conn, project, "Once upon a harbor.")
	require.NoError(t, conn.Model(project).Update("movie_style", "").Error)

	got, created, err := svc.Generate(context.Background(), project.ID, concept.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, story.ID, got.ID)
	assert.Zero(t, provider.Calls())

	require.NoError(t, conn.Delete(got).Error)
	_, _, err = svc.Generate(context.Background(), project.ID, concept.ID)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestValidateProjectForStory(t *testing.T) {
	result := ValidateProjectForStory(&models.Project{Name: "x"})
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"Movie Format", "Movie Style"}, result.MissingFields)
	assert.Len(t, result.Warnings, 4)
}

func TestEnhanceStory(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.Failing(errors.New("down"))), newTestLocks(t))
	svc.SetGainSource(func() int { return 2 })
	ctx := context.Background()

	project := createProject(t, conn)
	story := createStory(t, conn, project, "Once upon a harbor.")

	enhanced, err := svc.Enhance(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, enhanced.CurrentStep)
	assert.Contains(t, enhanced.CurrentContent, "**[ENHANCEMENT - Story Structure]**")
	assert.Contains(t, enhanced.CurrentContent, "**ENHANCED STRUCTURE:**")
	v, _ := enhanced.QualityMetrics.Get(models.MetricStructureScore)
	assert.Equal(t, 8, v)
	require.Len(t, enhanced.EnhancementHistory, 1)
	assert.Equal(t, "Story Structure", enhanced.EnhancementHistory[0].FocusArea)
	assert.Equal(t, 6, enhanced.EnhancementHistory[0].QualityBefore)

	for i := 0; i < 8; i++ {
		enhanced, err = svc.Enhance(ctx, story.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 12, enhanced.CurrentStep)
	assert.Equal(t, models.StoryStatusCompleted, enhanced.Status)

	for i := 0; i < 5; i++ {
		enhanced, err = svc.Enhance(ctx, story.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 12, enhanced.CurrentStep)
	assert.Len(t, enhanced.EnhancementHistory, models.MaxEnhancementSteps)
	assert.Equal(t, models.StoryStatusCompleted, enhanced.Status)

	stored, err := svc.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Len(t, stored.EnhancementHistory, models.MaxEnhancementSteps)

	_, err = svc.Enhance(ctx, "missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestEnhanceConcurrentCallsSerialize(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.Failing(errors.New("down"))), newTestLocks(t))
	svc.SetGainSource(func() int { return 1 })

	project := createProject(t, conn)
	story := createStory(t, conn, project, "Once upon a harbor.")

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Enhance(context.Background(), story.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := svc.Get(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, min(models.InitialStoryStep+n, models.MaxEnhancementSteps), stored.CurrentStep)
	require.Len(t, stored.EnhancementHistory, n)
	for i, entry := range stored.EnhancementHistory {
		assert.Equal(t, models.InitialStoryStep+i+1, entry.Step)
	}
}

func TestEnhanceUsesLLMRewrite(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.NewProvider("A sharper harbor story.")), newTestLocks(t))
	svc.SetGainSource(func() int { return 1 })

	project := createProject(t, conn)
	story := createStory(t, conn, project, "Once upon a harbor.")

	enhanced, err := svc.Enhance(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, "A sharper harbor story.", enhanced.CurrentContent)
	v, _ := enhanced.QualityMetrics.Get(models.MetricStructureScore)
	assert.Equal(t, 7, v)
}

func TestCompleteStory(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.NewProvider("x")), newTestLocks(t))
	ctx := context.Background()

	project := createProject(t, conn)
	story := createStory(t, conn, project, "Once upon a harbor.")

	_, err := svc.Complete(ctx, story.ID)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	details := appErr.Details.(map[string]interface{})
	assert.Equal(t, true, details["canContinue"])
	assert.Equal(t, 3, details["currentStep"])

	status, err := svc.CompletionStatus(ctx, story.ID)
	require.NoError(t, err)
	assert.False(t, status.IsReadyForCompletion)
	assert.Equal(t, "Story not yet ready for completion", status.CompletionReason)

	step := 12
	_, err = svc.Patch(ctx, story.ID, StoryPatch{CurrentStep: &step})
	require.NoError(t, err)

	result, err := svc.Complete(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusCompleted, result.Story.Status)
	assert.Equal(t, "Story completed: Full enhancement cycle (12 steps)", result.CompletionReason)
}

func TestPatchValidation(t *testing.T) {
	empty := "  "
	assert.Error(t, StoryPatch{CurrentContent: &empty}.Validate())
	bad := "done"
	assert.Error(t, StoryPatch{Status: &bad}.Validate())
	step := 13
	assert.Error(t, StoryPatch{CurrentStep: &step}.Validate())
	metrics := models.QualityMetrics{}
	metrics.Set(models.MetricDialogueQuality, 11)
	assert.Error(t, StoryPatch{QualityMetrics: &metrics}.Validate())
}

func TestPatchRecomputesOverallQuality(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.NewProvider("x")), newTestLocks(t))
	ctx := context.Background()

	project := createProject(t, conn)
	story := createStory(t, conn, project, "Once upon a harbor.")

	metrics := allMetrics(9)
	metrics.Set(models.MetricOverallQuality, 2)
	patched, err := svc.Patch(ctx, story.ID, StoryPatch{QualityMetrics: &metrics})
	require.NoError(t, err)
	overall, _ := patched.QualityMetrics.Get(models.MetricOverallQuality)
	assert.Equal(t, 9, overall)

	stored, err := svc.Get(ctx, story.ID)
	require.NoError(t, err)
	overall, _ = stored.QualityMetrics.Get(models.MetricOverallQuality)
	assert.Equal(t, 9, overall)
}

func TestListStories(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStoryService(conn, newTestGeneration(llmtest.NewProvider("x")), newTestLocks(t))
	ctx := context.Background()

	p1 := createProject(t, conn)
	p2 := createProject(t, conn, func(p *models.Project) { p.Name = "Second" })
	createStory(t, conn, p1, "one")
	createStory(t, conn, p2, "two")

	page, err := svc.List(ctx, StoryListOptions{ListOptions: ListOptions{Limit: 1}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalDocs)
	assert.Len(t, page.Docs, 1)
	assert.True(t, page.HasNextPage)

	filtered, err := svc.List(ctx, StoryListOptions{ProjectID: p2.ID})
	require.NoError(t, err)
	require.Len(t, filtered.Docs, 1)
	assert.Equal(t, "two", filtered.Docs[0].CurrentContent)

	_, err = svc.List(ctx, StoryListOptions{ListOptions: ListOptions{Sort: "-bogus"}})
	assert.True(t, apperrors.IsValidationError(err))

	require.NoError(t, svc.Delete(ctx, filtered.Docs[0].ID))
	assert.True(t, apperrors.IsNotFoundError(svc.Delete(ctx, filtered.Docs[0].ID)))
}
