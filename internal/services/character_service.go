// internal/services/character_service.go
package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/novelmovie/novelmovie/internal/charlib"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

const (
	characterGenerationMethod = "LLM DevelopCharacters"
	defaultCharacterQuality   = 85
	defaultCharacterComplete  = 90
	libraryStatusCreated      = "created"
	libraryStatusSynced       = "synced"

	// parallel character developments per request
	characterWorkers = 3
)

// CharacterService develops project characters and keeps their library references.
type CharacterService struct {
	DB         *gorm.DB
	Generation *GenerationService
	Library    *charlib.Client
	Progress   *ProgressService
	Media      *MediaService

	lockManager *LockManager
	now         func() time.Time
}

func NewCharacterService(db *gorm.DB, generation *GenerationService, library *charlib.Client, progress *ProgressService, media *MediaService, locks *LockManager) *CharacterService {
	return &CharacterService{
		DB:          db,
		Generation:  generation,
		Library:     library,
		Progress:    progress,
		Media:       media,
		lockManager: locks,
		now:         time.Now,
	}
}

// CharacterDevelopmentEntry is the outcome for one requested name.
type CharacterDevelopmentEntry struct {
	Name                 string `json:"name"`
	Success              bool   `json:"success"`
	LibraryCharacterID   string `json:"libraryCharacterId,omitempty"`
	CharacterReferenceID string `json:"characterReferenceId,omitempty"`
	Error                string `json:"error,omitempty"`
	Status               string `json:"status"`
}

// DevelopmentSummary counts the entries.
type DevelopmentSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// DevelopmentResult is the answer of a batch development.
type DevelopmentResult struct {
	TaskID     string                      `json:"taskId"`
	Message    string                      `json:"message"`
	Characters []CharacterDevelopmentEntry `json:"characters"`
	Summary    DevelopmentSummary          `json:"summary"`
}

func (s *CharacterService) loadProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, err
	}
	return &project, nil
}

// characterContext gathers the story material the profiles are developed from.
func (s *CharacterService) characterContext(ctx context.Context, project *models.Project) CharacterContext {
	db := s.DB.WithContext(ctx)
	cc := CharacterContext{
		ProjectName:    project.Name,
		MovieFormat:    project.MovieFormat,
		MovieStyle:     project.MovieStyle,
		DurationUnit:   project.DurationUnit,
		Genres:         project.PrimaryGenres,
		TargetAudience: project.TargetAudience,
		StoryContent:   project.CorePremise,
	}
	if cc.DurationUnit <= 0 {
		cc.DurationUnit = 15
	}

	var concept models.InitialConcept
	if db.Where("project_id = ?", project.ID).Limit(1).Find(&concept).RowsAffected > 0 {
		if len(concept.PrimaryGenres) > 0 {
			cc.Genres = concept.PrimaryGenres
		}
		if len(concept.TargetAudience) > 0 {
			cc.TargetAudience = concept.TargetAudience
		}
		cc.StoryContent = firstNonEmpty(concept.CorePremise, cc.StoryContent)
	}

	var story models.Story
	if db.Where("project_id = ?", project.ID).Limit(1).Find(&story).RowsAffected > 0 {
		cc.StoryContent = firstNonEmpty(story.CurrentContent, cc.StoryContent)
	}

	var structure models.StoryStructure
	if db.Where("project_id = ?", project.ID).Limit(1).Find(&structure).RowsAffected > 0 {
		cc.CharacterArcs = structure.CharacterArcs
		cc.StoryBeats = structure.StoryBeats
	}
	return cc
}

// developProfile asks the model for the named character, falling back to a
// template when it answers with no characters at all.
func (s *CharacterService) developProfile(ctx context.Context, cc CharacterContext, name string) (charlib.CharacterProfile, error) {
	profiles, err := s.Generation.DevelopCharacters(ctx, cc)
	if err != nil {
		return charlib.CharacterProfile{}, err
	}
	if profile, ok := PickCharacterProfile(profiles, name); ok {
		return profile, nil
	}
	return charlib.FallbackProfile(name, cc.ProjectName), nil
}

// referenceFromProfile fills ref from a created library character.
func (s *CharacterService) referenceFromProfile(ref *models.CharacterReference, profile charlib.CharacterProfile, resp *charlib.CreateCharacterResponse) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode character profile: %w", err)
	}

	quality := profile.GenerationMetadata.QualityScore
	if quality == 0 {
		quality = defaultCharacterQuality
	}
	completeness := profile.GenerationMetadata.Completeness
	if completeness == 0 {
		completeness = defaultCharacterComplete
	}

	now := s.now()
	ref.LibraryCharacterID = resp.CharacterID
	ref.LibraryDBID = resp.ID
	ref.GenerationStatus = models.GenerationComplete
	ref.DialogueVoice = profile.DialogueVoice.VoiceDescription
	ref.GenerationMetadata = models.CharacterGenerationMetadata{
		GeneratedAt:            &now,
		LastImageUpdate:        ref.GenerationMetadata.LastImageUpdate,
		GenerationMethod:       characterGenerationMethod,
		QualityScore:           quality,
		Completeness:           completeness,
		CharacterLibraryStatus: libraryStatusCreated,
		BAMLData:               datatypes.JSON(raw),
	}
	return nil
}

// developOne runs profile, library and storage for one name. Nothing is
// stored unless the library accepted the character.
func (s *CharacterService) developOne(ctx context.Context, project *models.Project, cc CharacterContext, name, role string) CharacterDevelopmentEntry {
	entry := CharacterDevelopmentEntry{Name: name}
	fail := func(err error) CharacterDevelopmentEntry {
		entry.Success = false
		entry.Error = err.Error()
		entry.Status = models.GenerationFailed
		return entry
	}

	profile, err := s.developProfile(ctx, cc, name)
	if err != nil {
		return fail(err)
	}
	resp, err := s.Library.CreateNovelMovieCharacter(ctx, profile, charlib.ProjectRef{ID: project.ID, Name: project.Name})
	if err != nil {
		return fail(err)
	}

	ref := &models.CharacterReference{
		ProjectID:            project.ID,
		ProjectCharacterName: name,
		CharacterRole:        role,
	}
	if err := s.referenceFromProfile(ref, profile, resp); err != nil {
		return fail(err)
	}
	if err := s.DB.WithContext(ctx).Create(ref).Error; err != nil {
		return fail(fmt.Errorf("failed to store character reference: %w", err))
	}

	entry.Success = true
	entry.LibraryCharacterID = ref.LibraryCharacterID
	entry.CharacterReferenceID = ref.ID
	entry.Status = models.GenerationComplete
	return entry
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Develop creates every named character of a project. Per character
// failures are reported in the result, not returned. taskID may be empty.
func (s *CharacterService) Develop(ctx context.Context, projectID string, names []string, taskID string) (*DevelopmentResult, error) {
	names = normalizeNames(names)
	if len(names) == 0 {
		return nil, apperrors.NewValidationError("Characters array is required", nil)
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if taskID == "" {
		taskID = uuid.NewString()
	}
	tracker := s.Progress.CreateTracker(taskID)
	logger := utils.GetLogger().Named("characters")

	result := &DevelopmentResult{TaskID: taskID}
	err = s.lockManager.WithLock("characters:"+projectID, func() error {
		cc := s.characterContext(ctx, project)
		entries := make([]CharacterDevelopmentEntry, len(names))

		progress := make(chan string)
		reported := make(chan struct{})
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(characterWorkers)
		go func() {
			defer close(reported)
			done := 0
			for name := range progress {
				done++
				tracker.UpdateProgress(done*100/len(names), fmt.Sprintf("Developed %s (%d/%d)", name, done, len(names)))
			}
		}()

		for i, name := range names {
			eg.Go(func() error {
				entries[i] = s.developOne(egCtx, project, cc, name, models.RoleSupporting)
				progress <- name
				return nil
			})
		}
		_ = eg.Wait()
		close(progress)
		<-reported

		result.Characters = entries
		return nil
	})
	if err != nil {
		tracker.Fail(err.Error())
		return nil, err
	}

	for _, e := range result.Characters {
		if e.Success {
			result.Summary.Successful++
		} else {
			result.Summary.Failed++
			logger.Warn("character development failed", map[string]interface{}{
				"project_id": projectID,
				"character":  e.Name,
				"error":      e.Error,
			})
		}
	}
	result.Summary.Total = len(names)
	result.Message = fmt.Sprintf("Generated %d characters successfully", result.Summary.Successful)
	tracker.Complete(result.Message)

	logger.Info("character development complete", map[string]interface{}{
		"project_id": projectID,
		"successful": result.Summary.Successful,
		"failed":     result.Summary.Failed,
	})
	return result, nil
}

// CharacterLibraryErrorCode marks failures of the external character library.
const CharacterLibraryErrorCode = "CHARACTER_LIBRARY_ERROR"

// libraryError reports a character library failure for name as a 502.
func libraryError(name string, err error) error {
	entry := CharacterDevelopmentEntry{Name: name, Error: err.Error(), Status: models.GenerationFailed}
	return apperrors.NewExternalServiceError(fmt.Sprintf("Character library request failed: %v", err), err).
		WithCode(CharacterLibraryErrorCode).
		WithDetails(entry)
}

// Regenerate develops an existing reference again and updates it in place.
// Library failures are external service errors; profile and storage
// failures keep their own type.
func (s *CharacterService) Regenerate(ctx context.Context, referenceID string) (*CharacterDevelopmentEntry, error) {
	ref, err := s.GetReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, ref.ProjectID)
	if err != nil {
		return nil, err
	}

	err = s.lockManager.WithLock("characters:"+ref.ProjectID, func() error {
		cc := s.characterContext(ctx, project)
		profile, err := s.developProfile(ctx, cc, ref.ProjectCharacterName)
		if err != nil {
			return apperrors.ClassifyAIError(err, "Failed to develop character profile")
		}
		resp, err := s.Library.CreateNovelMovieCharacter(ctx, profile, charlib.ProjectRef{ID: project.ID, Name: project.Name})
		if err != nil {
			return libraryError(ref.ProjectCharacterName, err)
		}
		if err := s.referenceFromProfile(ref, profile, resp); err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Save(ref).Error; err != nil {
			return fmt.Errorf("failed to update character reference: %w", err)
		}
		return nil
	})
	if err != nil {
		utils.GetLogger().Named("characters").Warn("character regeneration failed", map[string]interface{}{
			"reference_id": referenceID,
			"error":        err.Error(),
		})
		return nil, err
	}

	return &CharacterDevelopmentEntry{
		Name:                 ref.ProjectCharacterName,
		Success:              true,
		LibraryCharacterID:   ref.LibraryCharacterID,
		CharacterReferenceID: ref.ID,
		Status:               models.GenerationComplete,
	}, nil
}

// ==================== Library sync ====================

// SyncResult reports a push of stored characters to the library.
type SyncResult struct {
	Success          bool     `json:"success"`
	SyncedCharacters int      `json:"syncedCharacters"`
	Conflicts        []string `json:"conflicts"`
	Errors           []string `json:"errors"`
}

func newSyncResult() *SyncResult {
	return &SyncResult{Conflicts: []string{}, Errors: []string{}}
}

// storedProfile rebuilds the profile a reference was created from.
func storedProfile(ref *models.CharacterReference, project *models.Project) charlib.CharacterProfile {
	if profile, ok := charlib.DecodeProfile(ref.GenerationMetadata.BAMLData); ok {
		return profile
	}
	return charlib.FallbackProfile(ref.ProjectCharacterName, project.Name)
}

// libraryAvailable records an unhealthy library in result.
func (s *CharacterService) libraryAvailable(ctx context.Context, result *SyncResult) bool {
	health := s.Library.HealthCheck(ctx)
	if !health.IsHealthy {
		result.Errors = append(result.Errors, "Character Library unavailable: "+firstNonEmpty(health.Error, "unknown error"))
	}
	return health.IsHealthy
}

// markSynced stores the library identity of ref after a create.
func (s *CharacterService) markSynced(ctx context.Context, ref *models.CharacterReference, resp charlib.CreateCharacterResponse, status string) error {
	now := s.now()
	ref.LibraryDBID = resp.ID
	ref.LibraryCharacterID = firstNonEmpty(resp.CharacterID, ref.LibraryCharacterID)
	ref.GenerationMetadata.CharacterLibraryStatus = status
	ref.GenerationMetadata.LastSyncAt = &now
	if err := s.DB.WithContext(ctx).Save(ref).Error; err != nil {
		return fmt.Errorf("failed to update character reference: %w", err)
	}
	return nil
}

// syncOne creates an unlinked reference in the library, or replaces the
// library copy of a linked one. Removing the old copy is best effort.
func (s *CharacterService) syncOne(ctx context.Context, project *models.Project, ref *models.CharacterReference) error {
	status := libraryStatusCreated
	if ref.LibraryDBID != "" || ref.LibraryCharacterID != "" {
		status = libraryStatusSynced
	}
	if ref.LibraryDBID != "" {
		if err := s.Library.DeleteCharacter(ctx, ref.LibraryDBID); err != nil {
			utils.GetLogger().Named("characters").Warn("old library character not removed", map[string]interface{}{
				"reference_id":  ref.ID,
				"library_db_id": ref.LibraryDBID,
				"error":         err.Error(),
			})
		}
	}

	resp, err := s.Library.CreateNovelMovieCharacter(ctx, storedProfile(ref, project), charlib.ProjectRef{ID: project.ID, Name: project.Name})
	if err != nil {
		return err
	}
	return s.markSynced(ctx, ref, *resp, status)
}

// SyncCharacter pushes one stored character to the library. Library
// failures are reported in the result.
func (s *CharacterService) SyncCharacter(ctx context.Context, referenceID string) (*SyncResult, *models.CharacterReference, error) {
	ref, err := s.GetReference(ctx, referenceID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.loadProject(ctx, ref.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	result := newSyncResult()
	if !s.libraryAvailable(ctx, result) {
		return result, ref, nil
	}

	err = s.lockManager.WithLock("characters:"+ref.ProjectID, func() error {
		if err := s.syncOne(ctx, project, ref); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to sync %s: %v", ref.ProjectCharacterName, err))
			return nil
		}
		result.SyncedCharacters = 1
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	result.Success = len(result.Errors) == 0
	return result, ref, nil
}

// SyncProjectCharacters pushes every stored character of a project. Unlinked
// characters are created in one bulk call; linked ones are replaced one by
// one. Per character failures are collected.
func (s *CharacterService) SyncProjectCharacters(ctx context.Context, projectID string) (*SyncResult, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var refs []models.CharacterReference
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&refs).Error; err != nil {
		return nil, err
	}
	result := newSyncResult()
	if len(refs) == 0 {
		result.Success = true
		return result, nil
	}
	if !s.libraryAvailable(ctx, result) {
		return result, nil
	}

	logger := utils.GetLogger().Named("characters")
	err = s.lockManager.WithLock("characters:"+projectID, func() error {
		var unlinked, linked []*models.CharacterReference
		for i := range refs {
			if refs[i].LibraryDBID == "" && refs[i].LibraryCharacterID == "" {
				unlinked = append(unlinked, &refs[i])
			} else {
				linked = append(linked, &refs[i])
			}
		}

		if len(unlinked) > 0 {
			profiles := make([]charlib.CharacterProfile, len(unlinked))
			for i, ref := range unlinked {
				profiles[i] = storedProfile(ref, project)
			}
			resp, err := s.Library.BulkCreateNovelMovieCharacters(ctx, profiles, charlib.ProjectRef{ID: project.ID, Name: project.Name})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Bulk create failed: %v", err))
			} else {
				for i, ref := range unlinked {
					if i >= len(resp.Characters) {
						result.Errors = append(result.Errors, fmt.Sprintf("Failed to sync %s: missing from library response", ref.ProjectCharacterName))
						continue
					}
					if err := s.markSynced(ctx, ref, resp.Characters[i], libraryStatusCreated); err != nil {
						result.Errors = append(result.Errors, fmt.Sprintf("Failed to sync %s: %v", ref.ProjectCharacterName, err))
						continue
					}
					result.SyncedCharacters++
				}
			}
		}

		for _, ref := range linked {
			if err := s.syncOne(ctx, project, ref); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to sync %s: %v", ref.ProjectCharacterName, err))
				continue
			}
			result.SyncedCharacters++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Success = len(result.Errors) == 0
	logger.Info("project characters synced", map[string]interface{}{
		"project_id": projectID,
		"synced":     result.SyncedCharacters,
		"errors":     len(result.Errors),
	})
	return result, nil
}

// ProjectCharacters returns the stored profiles merged with their reference
// fields, in creation order.
func (s *CharacterService) ProjectCharacters(ctx context.Context, projectID string) ([]map[string]interface{}, error) {
	var refs []models.CharacterReference
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&refs).Error; err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(refs))
	for _, ref := range refs {
		character := map[string]interface{}{}
		if profile, ok := charlib.DecodeProfile(ref.GenerationMetadata.BAMLData); ok {
			_ = json.Unmarshal(ref.GenerationMetadata.BAMLData, &character)
			character["name"] = profile.Name
		} else {
			character["name"] = ref.ProjectCharacterName
			character["role"] = ref.CharacterRole
			character["archetype"] = "Unknown"
		}

		character["referenceId"] = ref.ID
		character["projectName"] = ref.ProjectCharacterName
		character["libraryId"] = ref.LibraryCharacterID
		character["characterLibraryId"] = ref.LibraryCharacterID
		character["status"] = firstNonEmpty(ref.GenerationStatus, "offline")
		character["characterLibraryStatus"] = firstNonEmpty(ref.GenerationMetadata.CharacterLibraryStatus, "offline")
		character["generatedAt"] = ref.GenerationMetadata.GeneratedAt
		character["lastImageUpdate"] = ref.GenerationMetadata.LastImageUpdate
		out = append(out, character)
	}
	return out, nil
}

// ==================== References ====================

// ReferenceListOptions filters the reference list.
type ReferenceListOptions struct {
	ListOptions
	ProjectID string
}

func (s *CharacterService) ListReferences(ctx context.Context, opts ReferenceListOptions) (*PageResult[models.CharacterReference], error) {
	query := s.DB.WithContext(ctx).Model(&models.CharacterReference{})
	if opts.ProjectID != "" {
		query = query.Where("project_id = ?", opts.ProjectID)
	}
	return paginate[models.CharacterReference](query, opts.ListOptions)
}

func (s *CharacterService) GetReference(ctx context.Context, id string) (*models.CharacterReference, error) {
	var ref models.CharacterReference
	if err := s.DB.WithContext(ctx).First(&ref, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Character reference not found", err)
		}
		return nil, err
	}
	return &ref, nil
}

// ReferencePatch holds the editable reference fields. Nil fields are kept.
type ReferencePatch struct {
	ProjectCharacterName *string `json:"projectCharacterName"`
	CharacterRole        *string `json:"characterRole"`
	GenerationStatus     *string `json:"generationStatus"`
	DialogueVoice        *string `json:"dialogueVoice"`
	LibraryCharacterID   *string `json:"libraryCharacterId"`
}

var (
	validRoles = map[string]bool{
		models.RoleProtagonist: true,
		models.RoleAntagonist:  true,
		models.RoleSupporting:  true,
		models.RoleMinor:       true,
	}
	validGenerationStatuses = map[string]bool{
		models.GenerationPending:       true,
		models.GenerationGenerated:     true,
		models.GenerationImagesCreated: true,
		models.GenerationComplete:      true,
		models.GenerationFailed:        true,
	}
)

func (p ReferencePatch) Validate() error {
	if p.ProjectCharacterName != nil && strings.TrimSpace(*p.ProjectCharacterName) == "" {
		return apperrors.NewValidationError("projectCharacterName cannot be empty", nil)
	}
	if p.CharacterRole != nil && !validRoles[*p.CharacterRole] {
		return apperrors.NewValidationError(fmt.Sprintf("invalid character role %q", *p.CharacterRole), nil)
	}
	if p.GenerationStatus != nil && !validGenerationStatuses[*p.GenerationStatus] {
		return apperrors.NewValidationError(fmt.Sprintf("invalid generation status %q", *p.GenerationStatus), nil)
	}
	return nil
}

func (s *CharacterService) PatchReference(ctx context.Context, id string, patch ReferencePatch) (*models.CharacterReference, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	ref, err := s.GetReference(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.ProjectCharacterName != nil {
		ref.ProjectCharacterName = strings.TrimSpace(*patch.ProjectCharacterName)
	}
	if patch.CharacterRole != nil {
		ref.CharacterRole = *patch.CharacterRole
	}
	if patch.GenerationStatus != nil {
		ref.GenerationStatus = *patch.GenerationStatus
	}
	if patch.DialogueVoice != nil {
		ref.DialogueVoice = *patch.DialogueVoice
	}
	if patch.LibraryCharacterID != nil {
		ref.LibraryCharacterID = *patch.LibraryCharacterID
	}
	if err := s.DB.WithContext(ctx).Save(ref).Error; err != nil {
		return nil, fmt.Errorf("failed to update character reference: %w", err)
	}
	return ref, nil
}

// DeleteReference removes a reference with its image metadata and media.
func (s *CharacterService) DeleteReference(ctx context.Context, id string) error {
	if _, err := s.GetReference(ctx, id); err != nil {
		return err
	}

	var mediaIDs []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CharacterImageMetadata{}).
			Where("character_reference_id = ? AND media_id IS NOT NULL", id).
			Pluck("media_id", &mediaIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("character_reference_id = ?", id).Delete(&models.CharacterImageMetadata{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CharacterReference{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete character reference: %w", err)
	}

	if s.Media != nil {
		for _, mediaID := range mediaIDs {
			if err := s.Media.Delete(ctx, mediaID); err != nil && !apperrors.IsNotFoundError(err) {
				utils.GetLogger().Named("characters").Warn("media cleanup failed", map[string]interface{}{
					"reference_id": id,
					"media_id":     mediaID,
					"error":        err.Error(),
				})
			}
		}
	}
	return nil
}
