// internal/services/concept_service.go
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

var validConceptStatuses = map[string]bool{
	models.ConceptStatusDraft:       true,
	models.ConceptStatusAIGenerated: true,
	models.ConceptStatusUserRefined: true,
	models.ConceptStatusReady:       true,
	models.ConceptStatusApproved:    true,
}

// ConceptService manages initial concepts, one per project.
type ConceptService struct {
	DB         *gorm.DB
	Generation *GenerationService
	now        func() time.Time
}

func NewConceptService(db *gorm.DB, generation *GenerationService) *ConceptService {
	return &ConceptService{DB: db, Generation: generation, now: time.Now}
}

// ConceptListOptions filters the concept list.
type ConceptListOptions struct {
	ListOptions
	ProjectID string
}

func (s *ConceptService) List(ctx context.Context, opts ConceptListOptions) (*PageResult[models.InitialConcept], error) {
	query := s.DB.WithContext(ctx).Model(&models.InitialConcept{})
	if opts.ProjectID != "" {
		query = query.Where("project_id = ?", opts.ProjectID)
	}
	return paginate[models.InitialConcept](query, opts.ListOptions)
}

// ConceptInput is the body of a create request.
type ConceptInput struct {
	ProjectID      string         `json:"project"`
	Title          string         `json:"title"`
	Status         string         `json:"status"`
	PrimaryGenres  []string       `json:"primaryGenres"`
	CorePremise    string         `json:"corePremise"`
	Tone           []string       `json:"tone"`
	TargetAudience []string       `json:"targetAudience"`
	Themes         []string       `json:"themes"`
	Extra          datatypes.JSON `json:"extra,omitempty"`
	AIGenerated    bool           `json:"aiGenerated,omitempty"`
	Model          string         `json:"generationModel,omitempty"`
}

func (s *ConceptService) Create(ctx context.Context, in ConceptInput) (*models.InitialConcept, error) {
	if in.ProjectID == "" {
		return nil, apperrors.NewValidationError("Missing required field: project is required", nil)
	}
	if in.Status == "" {
		in.Status = models.ConceptStatusDraft
	}
	if !validConceptStatuses[in.Status] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid concept status %q", in.Status), nil)
	}

	var concept *models.InitialConcept
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.InitialConcept{}).Where("project_id = ?", in.ProjectID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.NewConflictError("Initial concept already exists for this project. Use PUT to update.", nil)
		}

		var project models.Project
		if err := tx.First(&project, "id = ?", in.ProjectID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("Project not found", err)
			}
			return err
		}

		concept = &models.InitialConcept{
			ProjectID:      project.ID,
			ProjectName:    project.Name,
			Title:          in.Title,
			Status:         in.Status,
			PrimaryGenres:  compactIDs(in.PrimaryGenres),
			CorePremise:    in.CorePremise,
			Tone:           compactIDs(in.Tone),
			TargetAudience: compactIDs(in.TargetAudience),
			Themes:         compactIDs(in.Themes),
			Extra:          in.Extra,
		}
		if in.AIGenerated {
			at := s.now()
			concept.AIMetadata = models.ConceptAIMetadata{GeneratedAt: &at, GenerationModel: in.Model}
		}
		return tx.Create(concept).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create initial concept: %w", err)
	}
	return concept, nil
}

func (s *ConceptService) Get(ctx context.Context, id string) (*models.InitialConcept, error) {
	var concept models.InitialConcept
	if err := s.DB.WithContext(ctx).First(&concept, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Initial concept not found", err)
		}
		return nil, err
	}
	return &concept, nil
}

// GetByProject returns the concept of a project.
func (s *ConceptService) GetByProject(ctx context.Context, projectID string) (*models.InitialConcept, error) {
	var concept models.InitialConcept
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&concept).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Initial concept not found", err)
		}
		return nil, err
	}
	return &concept, nil
}

// ConceptUpdate holds the editable fields. Nil fields are kept.
type ConceptUpdate struct {
	Title          *string         `json:"title"`
	Status         *string         `json:"status"`
	PrimaryGenres  *[]string       `json:"primaryGenres"`
	CorePremise    *string         `json:"corePremise"`
	Tone           *[]string       `json:"tone"`
	TargetAudience *[]string       `json:"targetAudience"`
	Themes         *[]string       `json:"themes"`
	Extra          *datatypes.JSON `json:"extra"`
}

// Update applies the changes. Text edits to an AI generated concept are
// recorded as user modifications and move it to user-refined.
func (s *ConceptService) Update(ctx context.Context, id string, update ConceptUpdate) (*models.InitialConcept, error) {
	concept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Status != nil && !validConceptStatuses[*update.Status] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid concept status %q", *update.Status), nil)
	}

	aiGenerated := concept.AIMetadata.GeneratedAt != nil
	track := func(field, before, after string) {
		if !aiGenerated || before == after {
			return
		}
		concept.AIMetadata.UserModifications = append(concept.AIMetadata.UserModifications, models.ConceptModification{
			Field:         field,
			ModifiedAt:    s.now(),
			OriginalValue: before,
			NewValue:      after,
		})
	}

	if update.Title != nil {
		track("title", concept.Title, *update.Title)
		concept.Title = *update.Title
	}
	if update.CorePremise != nil {
		track("corePremise", concept.CorePremise, *update.CorePremise)
		concept.CorePremise = *update.CorePremise
	}
	if update.PrimaryGenres != nil {
		concept.PrimaryGenres = compactIDs(*update.PrimaryGenres)
	}
	if update.Tone != nil {
		concept.Tone = compactIDs(*update.Tone)
	}
	if update.TargetAudience != nil {
		concept.TargetAudience = compactIDs(*update.TargetAudience)
	}
	if update.Themes != nil {
		concept.Themes = compactIDs(*update.Themes)
	}
	if update.Extra != nil {
		concept.Extra = *update.Extra
	}

	switch {
	case update.Status != nil:
		concept.Status = *update.Status
	case aiGenerated && concept.Status == models.ConceptStatusAIGenerated && len(concept.AIMetadata.UserModifications) > 0:
		concept.Status = models.ConceptStatusUserRefined
	}

	if err := s.DB.WithContext(ctx).Save(concept).Error; err != nil {
		return nil, fmt.Errorf("failed to update initial concept: %w", err)
	}
	return concept, nil
}

func (s *ConceptService) Delete(ctx context.Context, id string) error {
	result := s.DB.WithContext(ctx).Delete(&models.InitialConcept{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete initial concept: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("Initial concept not found", nil)
	}
	return nil
}

// QualityScore validates the form and scores it, falling back to the
// heuristic when the model cannot answer. Credit exhaustion is returned.
func (s *ConceptService) QualityScore(ctx context.Context, req ConceptQualityRequest) (*QualityAssessment, error) {
	if problems := req.Validate(); len(problems) > 0 {
		return nil, apperrors.NewValidationError("Invalid request data", nil).
			WithDetails(map[string]interface{}{"fields": problems})
	}

	assessment, err := s.Generation.AssessConceptQuality(ctx, req)
	if err == nil {
		return assessment, nil
	}
	if classified := apperrors.ClassifyAIError(err, ""); apperrors.IsInsufficientCreditsError(classified) {
		return nil, classified
	}

	utils.GetLogger().Named("concepts").Warn("quality assessment failed, using heuristic", map[string]interface{}{
		"project": req.ProjectName,
		"error":   err.Error(),
	})
	return HeuristicConceptQuality(req), nil
}

// conceptToQualityRequest builds a scoring request from stored records.
func conceptToQualityRequest(project *models.Project, concept *models.InitialConcept) ConceptQualityRequest {
	return ConceptQualityRequest{
		ProjectName:    project.Name,
		MovieFormat:    project.MovieFormat,
		MovieStyle:     project.MovieStyle,
		Series:         project.Series,
		DurationUnit:   project.DurationUnit,
		PrimaryGenres:  concept.PrimaryGenres,
		CorePremise:    strings.TrimSpace(firstNonEmpty(concept.CorePremise, project.CorePremise)),
		TargetAudience: concept.TargetAudience,
		Tone:           concept.Tone,
		Themes:         concept.Themes,
	}
}

// ScoreStored scores a saved concept against its project.
func (s *ConceptService) ScoreStored(ctx context.Context, id string) (*QualityAssessment, error) {
	concept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, "id = ?", concept.ProjectID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, err
	}
	return s.QualityScore(ctx, conceptToQualityRequest(&project, concept))
}

// ConceptAutofillResult is the outcome of an autofill run.
type ConceptAutofillResult struct {
	GeneratedFields map[string]string `json:"generatedFields"`
	Progress        []FieldProgress   `json:"progress"`
	Summary         struct {
		TotalGenerated int `json:"totalGenerated"`
		TotalFailed    int `json:"totalFailed"`
		TotalFields    int `json:"totalFields"`
	} `json:"summary"`
	Message string `json:"message"`
}

// Autofill generates the empty text fields of a concept form whose inputs
// are present. Nothing is persisted; the client saves the form.
func (s *ConceptService) Autofill(ctx context.Context, req ConceptAutofillRequest) (*ConceptAutofillResult, error) {
	if strings.TrimSpace(req.ProjectName) == "" {
		return nil, apperrors.NewValidationError("Missing required field: projectName is required", nil)
	}
	if req.MovieFormat == "series" && strings.TrimSpace(req.Series) == "" {
		return nil, apperrors.NewValidationError("Series is required when movie format is series", nil)
	}

	// filled fields are never regenerated
	form := req.FormData
	skip := map[string]bool{
		"corePremise":                   strings.TrimSpace(form.CorePremise) != "",
		"targetAudience.psychographics": strings.TrimSpace(form.TargetAudience.Psychographics) != "",
		"toneAndMood.emotionalArc":      strings.TrimSpace(form.ToneAndMood.EmotionalArc) != "",
	}
	generated, progress, err := s.Generation.GenerateConceptFields(ctx, req, skip)
	if err != nil {
		return nil, err
	}
	if len(generated) == 0 && len(progress) == 0 {
		return nil, apperrors.NewValidationError("All eligible fields are already filled or missing required dependencies. Nothing to generate.", nil)
	}

	result := &ConceptAutofillResult{GeneratedFields: generated, Progress: progress}
	result.Summary.TotalGenerated = len(generated)
	result.Summary.TotalFailed = len(progress) - len(generated)
	result.Summary.TotalFields = len(progress)
	result.Message = fmt.Sprintf("Successfully generated %d field(s)", len(generated))
	if result.Summary.TotalFailed > 0 {
		result.Message += fmt.Sprintf(" (%d failed)", result.Summary.TotalFailed)
	}

	utils.GetLogger().Named("concepts").Info("concept autofill finished", map[string]interface{}{
		"project":   req.ProjectName,
		"generated": result.Summary.TotalGenerated,
		"failed":    result.Summary.TotalFailed,
	})
	return result, nil
}
