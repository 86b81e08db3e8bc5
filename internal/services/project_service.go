// internal/services/project_service.go
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

const defaultDurationUnit = 90

var validProjectStatuses = map[string]bool{
	models.ProjectStatusDraft:      true,
	models.ProjectStatusInProgress: true,
	models.ProjectStatusCompleted:  true,
	models.ProjectStatusArchived:   true,
}

// ProjectService manages projects and their cascading children.
type ProjectService struct {
	DB         *gorm.DB
	Generation *GenerationService
	Media      *MediaService
}

func NewProjectService(db *gorm.DB, generation *GenerationService, media *MediaService) *ProjectService {
	return &ProjectService{DB: db, Generation: generation, Media: media}
}

// ProjectListOptions filters the project list.
type ProjectListOptions struct {
	ListOptions
	Status string
}

func (s *ProjectService) List(ctx context.Context, opts ProjectListOptions) (*PageResult[models.Project], error) {
	query := s.DB.WithContext(ctx).Model(&models.Project{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	return paginate[models.Project](query, opts.ListOptions)
}

// ProjectInput is the body of a create request.
type ProjectInput struct {
	Name             string   `json:"name"`
	ProjectTitle     string   `json:"projectTitle"`
	ShortDescription string   `json:"shortDescription"`
	LongDescription  string   `json:"longDescription"`
	MovieFormat      string   `json:"movieFormat"`
	MovieStyle       string   `json:"movieStyle"`
	Series           string   `json:"series"`
	DurationUnit     int      `json:"durationUnit"`
	PrimaryGenres    []string `json:"primaryGenres"`
	CorePremise      string   `json:"corePremise"`
	TargetAudience   []string `json:"targetAudience"`
	Tone             []string `json:"tone"`
	Status           string   `json:"status"`
}

// compactIDs drops blank entries from a relationship list.
func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*models.Project, error) {
	if strings.TrimSpace(in.Name) == "" || in.MovieFormat == "" || in.MovieStyle == "" {
		return nil, apperrors.NewValidationError("Missing required fields: name, movieFormat, and movieStyle are required", nil)
	}
	if in.Status == "" {
		in.Status = models.ProjectStatusDraft
	}
	if !validProjectStatuses[in.Status] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid project status %q", in.Status), nil)
	}
	if in.DurationUnit <= 0 {
		in.DurationUnit = defaultDurationUnit
	}

	project := &models.Project{
		Name:             strings.TrimSpace(in.Name),
		ProjectTitle:     in.ProjectTitle,
		ShortDescription: in.ShortDescription,
		LongDescription:  in.LongDescription,
		MovieFormat:      in.MovieFormat,
		MovieStyle:       in.MovieStyle,
		Series:           in.Series,
		DurationUnit:     in.DurationUnit,
		PrimaryGenres:    compactIDs(in.PrimaryGenres),
		CorePremise:      in.CorePremise,
		TargetAudience:   compactIDs(in.TargetAudience),
		Tone:             compactIDs(in.Tone),
		Status:           in.Status,
	}
	if err := s.DB.WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	utils.GetLogger().Named("projects").Info("project created", map[string]interface{}{
		"project_id": project.ID,
		"name":       project.Name,
	})
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, err
	}
	return &project, nil
}

// ProjectUpdate holds the editable fields. Nil fields are kept.
type ProjectUpdate struct {
	Name             *string   `json:"name"`
	ProjectTitle     *string   `json:"projectTitle"`
	ShortDescription *string   `json:"shortDescription"`
	LongDescription  *string   `json:"longDescription"`
	MovieFormat      *string   `json:"movieFormat"`
	MovieStyle       *string   `json:"movieStyle"`
	Series           *string   `json:"series"`
	DurationUnit     *int      `json:"durationUnit"`
	PrimaryGenres    *[]string `json:"primaryGenres"`
	CorePremise      *string   `json:"corePremise"`
	TargetAudience   *[]string `json:"targetAudience"`
	Tone             *[]string `json:"tone"`
	Status           *string   `json:"status"`
}

func (u ProjectUpdate) apply(p *models.Project) error {
	setString := func(dst *string, src *string, field string, required bool) error {
		if src == nil {
			return nil
		}
		if required && strings.TrimSpace(*src) == "" {
			return apperrors.NewValidationError(field+" cannot be empty", nil)
		}
		*dst = *src
		return nil
	}
	if err := setString(&p.Name, u.Name, "name", true); err != nil {
		return err
	}
	if err := setString(&p.MovieFormat, u.MovieFormat, "movieFormat", true); err != nil {
		return err
	}
	if err := setString(&p.MovieStyle, u.MovieStyle, "movieStyle", true); err != nil {
		return err
	}
	_ = setString(&p.ProjectTitle, u.ProjectTitle, "projectTitle", false)
	_ = setString(&p.ShortDescription, u.ShortDescription, "shortDescription", false)
	_ = setString(&p.LongDescription, u.LongDescription, "longDescription", false)
	_ = setString(&p.Series, u.Series, "series", false)
	_ = setString(&p.CorePremise, u.CorePremise, "corePremise", false)

	if u.Status != nil {
		if !validProjectStatuses[*u.Status] {
			return apperrors.NewValidationError(fmt.Sprintf("invalid project status %q", *u.Status), nil)
		}
		p.Status = *u.Status
	}
	if u.DurationUnit != nil {
		if *u.DurationUnit <= 0 {
			return apperrors.NewValidationError("durationUnit must be positive", nil)
		}
		p.DurationUnit = *u.DurationUnit
	}
	if u.PrimaryGenres != nil {
		p.PrimaryGenres = compactIDs(*u.PrimaryGenres)
	}
	if u.TargetAudience != nil {
		p.TargetAudience = compactIDs(*u.TargetAudience)
	}
	if u.Tone != nil {
		p.Tone = compactIDs(*u.Tone)
	}
	return nil
}

func (s *ProjectService) Update(ctx context.Context, id string, update ProjectUpdate) (*models.Project, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := update.apply(project); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(project).Error; err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// Delete removes the project and everything hanging off it in one
// transaction, then removes the media files of its character images.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	var mediaIDs []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refIDs := tx.Model(&models.CharacterReference{}).Select("id").Where("project_id = ?", id)

		if err := tx.Model(&models.CharacterImageMetadata{}).
			Where("character_reference_id IN (?) AND media_id IS NOT NULL", refIDs).
			Pluck("media_id", &mediaIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("character_reference_id IN (?)", refIDs).Delete(&models.CharacterImageMetadata{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{
			&models.CharacterReference{},
			&models.StoryStructure{},
			&models.Story{},
			&models.InitialConcept{},
			&models.FundamentalData{},
		} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	logger := utils.GetLogger().Named("projects")
	if s.Media != nil {
		for _, mediaID := range mediaIDs {
			if err := s.Media.Delete(ctx, mediaID); err != nil && !apperrors.IsNotFoundError(err) {
				logger.Warn("media cleanup failed", map[string]interface{}{
					"project_id": id,
					"media_id":   mediaID,
					"error":      err.Error(),
				})
			}
		}
	}

	logger.Info("project deleted", map[string]interface{}{"project_id": id, "media_removed": len(mediaIDs)})
	return nil
}

// AutofillResult is returned by Autofill.
type AutofillResult struct {
	GeneratedFields GeneratedFields `json:"generatedFields"`
	Message         string          `json:"message"`
}

// Autofill generates the empty title and description fields for a project form.
func (s *ProjectService) Autofill(ctx context.Context, pc ProjectContext) (*AutofillResult, error) {
	var missing []string
	if strings.TrimSpace(pc.ProjectName) == "" {
		missing = append(missing, "name")
	}
	if pc.MovieFormat == "" {
		missing = append(missing, "movieFormat")
	}
	if pc.MovieStyle == "" {
		missing = append(missing, "movieStyle")
	}
	if pc.DurationUnit <= 0 {
		missing = append(missing, "durationUnit")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("Missing required fields. Please fill in all required fields before using AI auto-fill.", nil).
			WithDetails(map[string]interface{}{"missingFields": missing})
	}
	if pc.MovieFormat == "series" && pc.Series == "" {
		return nil, apperrors.NewValidationError(`Series is required when movie format is "Series".`, nil)
	}

	fields, err := s.Generation.GenerateMissingFields(ctx, pc)
	if err != nil {
		return nil, apperrors.ClassifyAIError(err, "Failed to generate project fields")
	}
	n := fields.Count()
	if n == 0 {
		return nil, apperrors.NewValidationError("All optional fields are already filled. Nothing to generate.", nil)
	}
	return &AutofillResult{
		GeneratedFields: fields,
		Message:         fmt.Sprintf("Successfully generated %d field(s)", n),
	}, nil
}

// CoreElements are the generated story element fields. List fields hold
// taxonomy slugs.
type CoreElements struct {
	PrimaryGenres  []string `json:"primaryGenres,omitempty"`
	CorePremise    string   `json:"corePremise,omitempty"`
	TargetAudience []string `json:"targetAudience,omitempty"`
	Tone           []string `json:"tone,omitempty"`
	Mood           []string `json:"mood,omitempty"`
}

func (c CoreElements) count() int {
	n := 0
	for _, filled := range []bool{len(c.PrimaryGenres) > 0, c.CorePremise != "", len(c.TargetAudience) > 0, len(c.Tone) > 0, len(c.Mood) > 0} {
		if filled {
			n++
		}
	}
	return n
}

// CoreElementsResult is returned by CoreElementsAutofill.
type CoreElementsResult struct {
	GeneratedFields CoreElements `json:"generatedFields"`
	Message         string       `json:"message"`
}

// CoreElementsAutofill fills the empty story elements of a project form in
// order: genres, premise, audience, tone, mood. Each step sees the earlier
// results. Generated genres must match an existing genre; unknown audience,
// tone and mood names are added to their collections.
func (s *ProjectService) CoreElementsAutofill(ctx context.Context, cc CoreElementsContext) (*CoreElementsResult, error) {
	var missing []string
	if strings.TrimSpace(cc.ProjectName) == "" {
		missing = append(missing, "name")
	}
	if cc.MovieFormat == "" {
		missing = append(missing, "movieFormat")
	}
	if cc.MovieStyle == "" {
		missing = append(missing, "movieStyle")
	}
	if cc.DurationUnit <= 0 {
		missing = append(missing, "durationUnit")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("Missing required fields. Please fill in all required fields before using AI auto-fill.", nil).
			WithDetails(map[string]interface{}{"missingFields": missing})
	}
	if cc.MovieFormat == "series" && cc.Series == "" {
		return nil, apperrors.NewValidationError(`Series is required when movie format is "Series".`, nil)
	}

	logger := utils.GetLogger().Named("projects")

	// prompts read names, the result carries slugs
	prompt := cc
	prompt.PrimaryGenres = TaxonomyNames(ctx, s.DB, models.TaxonomyGenres, cc.PrimaryGenres)
	prompt.TargetAudience = TaxonomyNames(ctx, s.DB, models.TaxonomyAudienceDemographics, cc.TargetAudience)
	prompt.Tone = TaxonomyNames(ctx, s.DB, models.TaxonomyToneOptions, cc.Tone)
	prompt.Mood = TaxonomyNames(ctx, s.DB, models.TaxonomyMoodDescriptors, cc.Mood)

	var out CoreElements
	var abort, lastErr error
	step := func(field string, run func() error) {
		if abort != nil {
			return
		}
		err := run()
		if err == nil {
			return
		}
		lastErr = err
		if classified := apperrors.ClassifyAIError(err, ""); apperrors.IsInsufficientCreditsError(classified) {
			abort = classified
			return
		}
		logger.Warn("core element generation failed", map[string]interface{}{
			"project": cc.ProjectName,
			"field":   field,
			"error":   err.Error(),
		})
	}
	listStep := func(kind models.TaxonomyKind, create bool, category string, generate func(context.Context, CoreElementsContext) ([]string, error), names *[]string, slugs *[]string) func() error {
		return func() error {
			generated, err := generate(ctx, prompt)
			if err != nil {
				return err
			}
			resolved, err := ResolveTaxonomySlugs(ctx, s.DB, kind, generated, create, category)
			if err != nil {
				return err
			}
			if len(resolved) > 0 {
				*names = generated
				*slugs = resolved
			}
			return nil
		}
	}

	if len(cc.PrimaryGenres) == 0 {
		step("primaryGenres", listStep(models.TaxonomyGenres, false, "", s.Generation.GeneratePrimaryGenres, &prompt.PrimaryGenres, &out.PrimaryGenres))
	}
	if strings.TrimSpace(cc.CorePremise) == "" {
		step("corePremise", func() error {
			premise, err := s.Generation.GenerateSimpleCorePremise(ctx, prompt)
			if err != nil {
				return err
			}
			prompt.CorePremise = premise
			out.CorePremise = premise
			return nil
		})
	}
	if len(cc.TargetAudience) == 0 {
		step("targetAudience", listStep(models.TaxonomyAudienceDemographics, true, "age", s.Generation.GenerateTargetAudience, &prompt.TargetAudience, &out.TargetAudience))
	}
	if len(cc.Tone) == 0 {
		step("tone", listStep(models.TaxonomyToneOptions, true, "", s.Generation.GenerateTone, &prompt.Tone, &out.Tone))
	}
	if len(cc.Mood) == 0 {
		step("mood", listStep(models.TaxonomyMoodDescriptors, true, "", s.Generation.GenerateMood, &prompt.Mood, &out.Mood))
	}
	if abort != nil {
		return nil, abort
	}

	n := out.count()
	if n == 0 && lastErr != nil {
		return nil, apperrors.ClassifyAIError(lastErr, "Failed to generate core story elements")
	}
	if n == 0 {
		return nil, apperrors.NewValidationError("All core story elements are already filled. Nothing to generate.", nil)
	}
	return &CoreElementsResult{
		GeneratedFields: out,
		Message:         fmt.Sprintf("Successfully generated %d core story element(s)", n),
	}, nil
}
