// internal/services/image_service.go
package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/novelmovie/novelmovie/internal/charlib"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

const (
	default360Style            = "character_turnaround"
	default360QualityThreshold = 70
	default360ImageCount       = 8
	defaultSceneType           = "dialogue"

	imageListLimit   = 100
	ingestWorkers    = 4
	referenceLight   = "soft, even three‑point lighting"
	referenceFraming = "chest-to-mid-thigh crop, equal headroom, characters pinned to left/right thirds, inter-subject gap ≈ 7% of frame width, matched eye level, 35mm lens."
)

// ImageService generates character images through the library and keeps
// local copies with their metadata.
type ImageService struct {
	DB      *gorm.DB
	Library *charlib.Client
	Media   *MediaService

	now func() time.Time
}

func NewImageService(db *gorm.DB, library *charlib.Client, media *MediaService) *ImageService {
	return &ImageService{DB: db, Library: library, Media: media, now: time.Now}
}

// ==================== Prompts ====================

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// BuildReferenceImagePrompt composes a studio reference prompt from the
// stored character profile.
func BuildReferenceImagePrompt(ref *models.CharacterReference) string {
	name := firstNonEmpty(ref.ProjectCharacterName, "the character")
	profile, _ := charlib.DecodeProfile(ref.GenerationMetadata.BAMLData)

	pd := profile.PhysicalDescription
	age := ""
	if pd.Age > 0 {
		age = strconv.Itoa(pd.Age) + " years old"
	}
	hair := ""
	if pd.HairColor != "" {
		hair = pd.HairColor + " hair"
	}
	eyes := ""
	if pd.EyeColor != "" {
		eyes = pd.EyeColor + " eyes"
	}
	physical := joinNonEmpty(", ", age, pd.Height, hair, eyes, pd.Description)
	attire := joinNonEmpty(", ", pd.Clothing)
	personality := strings.TrimSpace(profile.CharacterDevelopment.Personality)

	core := []string{"Ultra-detailed, photorealistic studio reference of " + name}
	if physical != "" {
		core = append(core, "("+physical+")")
	}
	if attire != "" {
		core = append(core, "wardrobe: "+attire)
	}
	if personality != "" {
		core = append(core, "personality cues: "+personality)
	}

	look := []string{
		"lighting: " + referenceLight,
		"neutral seamless studio background",
		"high dynamic range, crisp focus, accurate skin tones, no text or watermarks",
	}

	return strings.TrimSpace(fmt.Sprintf("%s. %s. Shot details: %s",
		strings.Join(core, "; "), strings.Join(look, "; "), referenceFraming))
}

// InitialImagePrompt picks the prompt for a master reference image: the
// override, then the profile based prompt, then a plain template.
func InitialImagePrompt(ref *models.CharacterReference, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if _, ok := charlib.DecodeProfile(ref.GenerationMetadata.BAMLData); ok {
		return BuildReferenceImagePrompt(ref)
	}
	return fmt.Sprintf("Professional character reference image for %s. High quality, clear lighting, neutral background, full body view.",
		firstNonEmpty(ref.ProjectCharacterName, "the character"))
}

// ==================== Generation ====================

func (s *ImageService) linkedReference(ctx context.Context, id string) (*models.CharacterReference, error) {
	var ref models.CharacterReference
	if err := s.DB.WithContext(ctx).First(&ref, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Character reference not found", err)
		}
		return nil, err
	}
	if ref.LibraryCharacterID == "" {
		return nil, apperrors.NewValidationError("Character not linked to Character Library", nil)
	}
	return &ref, nil
}

func imageMetrics(img charlib.ImageResult) datatypes.JSON {
	metrics := map[string]interface{}{}
	if img.Quality > 0 {
		metrics["qualityScore"] = img.Quality
	}
	if img.Consistency > 0 {
		metrics["consistencyScore"] = img.Consistency
	}
	raw, _ := json.Marshal(metrics)
	return datatypes.JSON(raw)
}

// ingest copies one library image into local media and records it. Download
// and storage failures are logged; the metadata row is still written.
func (s *ImageService) ingest(ctx context.Context, ref *models.CharacterReference, img charlib.ImageResult, kind, prompt, alt string) (*models.CharacterImageMetadata, error) {
	meta := &models.CharacterImageMetadata{
		CharacterReferenceID: ref.ID,
		Kind:                 kind,
		Provider:             models.ProviderCharacterLibrary,
		Prompt:               prompt,
		SourceURL:            img.SourceURL(),
		ExternalID:           img.ExternalID(),
		Status:               models.ImageStatusSucceeded,
		Metrics:              imageMetrics(img),
	}
	if !img.Succeeded() {
		meta.Status = models.ImageStatusFailed
		meta.Error = firstNonEmpty(img.Error, img.Message)
	}

	if meta.SourceURL != "" && s.Media != nil {
		prefix := ref.ProjectCharacterName + "-" + kind
		media, err := s.Media.Ingest(ctx, meta.SourceURL, prefix, alt)
		if err != nil {
			utils.GetLogger().Named("images").Warn("image ingest failed", map[string]interface{}{
				"reference_id": ref.ID,
				"source_url":   meta.SourceURL,
				"error":        err.Error(),
			})
		} else {
			meta.MediaID = &media.ID
			meta.Media = media
		}
	}

	if err := s.DB.WithContext(ctx).Omit("Media", "CharacterReference").Create(meta).Error; err != nil {
		return nil, fmt.Errorf("failed to store image metadata: %w", err)
	}
	return meta, nil
}

// ImageGenerationResult is returned by the single image operations.
type ImageGenerationResult struct {
	Success bool                           `json:"success"`
	Data    *charlib.ImageResult           `json:"data"`
	Image   *models.CharacterImageMetadata `json:"image,omitempty"`
}

// GenerateInitialImage creates the master reference image of a character.
func (s *ImageService) GenerateInitialImage(ctx context.Context, referenceID, promptOverride string) (*ImageGenerationResult, error) {
	ref, err := s.linkedReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	prompt := InitialImagePrompt(ref, promptOverride)

	img, err := s.Library.GenerateInitialImage(ctx, ref.LibraryCharacterID, prompt)
	if err != nil {
		s.markFailed(ctx, ref, err)
		return nil, apperrors.NewExternalServiceError("Image generation failed", err)
	}

	meta, err := s.ingest(ctx, ref, *img, models.ImageKindReference, prompt, ref.ProjectCharacterName+" - reference image")
	if err != nil {
		utils.GetLogger().Named("images").Error("reference image record failed", map[string]interface{}{
			"reference_id": ref.ID,
			"error":        err.Error(),
		})
	}

	now := s.now()
	ref.GenerationMetadata.LastImageUpdate = &now
	ref.LibraryAssets.MasterReferencePublicURL = img.SourceURL()
	ref.GenerationStatus = models.GenerationImagesCreated
	if !img.Succeeded() {
		ref.GenerationStatus = models.GenerationFailed
	}
	s.saveReference(ctx, ref)

	return &ImageGenerationResult{Success: img.Succeeded(), Data: img, Image: meta}, nil
}

// markFailed records a library failure on the reference.
func (s *ImageService) markFailed(ctx context.Context, ref *models.CharacterReference, cause error) {
	ref.GenerationStatus = models.GenerationFailed
	ref.GenerationMetadata.ErrorMessage = cause.Error()
	s.saveReference(ctx, ref)
}

func (s *ImageService) saveReference(ctx context.Context, ref *models.CharacterReference) {
	if err := s.DB.WithContext(ctx).Save(ref).Error; err != nil {
		utils.GetLogger().Named("images").Warn("failed to persist character reference", map[string]interface{}{
			"reference_id": ref.ID,
			"error":        err.Error(),
		})
	}
}

// Set360Request tunes a 360 set. Zero fields take the defaults.
type Set360Request struct {
	Style            string `json:"style"`
	QualityThreshold int    `json:"qualityThreshold"`
	ImageCount       int    `json:"imageCount"`
}

func (r Set360Request) options() charlib.Set360Options {
	opts := charlib.Set360Options{Style: r.Style, QualityThreshold: r.QualityThreshold, ImageCount: r.ImageCount}
	if opts.Style == "" {
		opts.Style = default360Style
	}
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = default360QualityThreshold
	}
	if opts.ImageCount <= 0 {
		opts.ImageCount = default360ImageCount
	}
	return opts
}

// Set360Result is returned by Generate360Set.
type Set360Result struct {
	Success bool                            `json:"success"`
	Data    *charlib.ImageSetResponse       `json:"data"`
	Images  []models.CharacterImageMetadata `json:"images"`
}

// Generate360Set creates the turnaround set and ingests every image
// concurrently as a portfolio item.
func (s *ImageService) Generate360Set(ctx context.Context, referenceID string, req Set360Request) (*Set360Result, error) {
	ref, err := s.linkedReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	resp, err := s.Library.Generate360Set(ctx, ref.LibraryCharacterID, req.options())
	if err != nil {
		return nil, apperrors.NewExternalServiceError("360° set generation failed", err)
	}

	images := resp.AllImages()
	var (
		mu     sync.Mutex
		stored = make([]models.CharacterImageMetadata, 0, len(images))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ingestWorkers)
	alt := ref.ProjectCharacterName + " - 360 portfolio"
	for _, img := range images {
		if img.SourceURL() == "" {
			continue
		}
		eg.Go(func() error {
			meta, err := s.ingest(egCtx, ref, img, models.ImageKindPortfolioItem, "", alt)
			if err != nil {
				return err
			}
			mu.Lock()
			stored = append(stored, *meta)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		utils.GetLogger().Named("images").Warn("360 set ingest incomplete", map[string]interface{}{
			"reference_id": ref.ID,
			"error":        err.Error(),
		})
	}

	now := s.now()
	ref.LibraryAssets.CoreSetGenerated = true
	if len(images) > 0 {
		ref.LibraryAssets.CoreSetCount = len(images)
	}
	ref.GenerationMetadata.LastImageUpdate = &now
	s.saveReference(ctx, ref)

	success := resp.Success == nil || *resp.Success
	return &Set360Result{Success: success, Data: resp, Images: stored}, nil
}

// SceneImageRequest describes a scene to render the character in.
type SceneImageRequest struct {
	SceneDescription string `json:"sceneDescription"`
	SceneType        string `json:"sceneType"`
	Mood             string `json:"mood"`
	Lighting         string `json:"lighting"`
}

func (s *ImageService) GenerateSceneImage(ctx context.Context, referenceID string, req SceneImageRequest) (*ImageGenerationResult, error) {
	if strings.TrimSpace(req.SceneDescription) == "" {
		return nil, apperrors.NewValidationError("sceneDescription is required", nil)
	}
	ref, err := s.linkedReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	scene := charlib.SceneContext{
		Description: req.SceneDescription,
		Type:        firstNonEmpty(req.SceneType, defaultSceneType),
		Mood:        req.Mood,
		Lighting:    req.Lighting,
	}
	img, err := s.Library.GenerateSceneImage(ctx, ref.LibraryCharacterID, scene)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("Scene image generation failed", err)
	}

	meta, err := s.ingest(ctx, ref, *img, models.ImageKindScene, req.SceneDescription, ref.ProjectCharacterName+" - scene image")
	if err != nil {
		return nil, err
	}

	now := s.now()
	ref.GenerationMetadata.LastImageUpdate = &now
	s.saveReference(ctx, ref)
	return &ImageGenerationResult{Success: img.Succeeded(), Data: img, Image: meta}, nil
}

// ==================== Listing and deletion ====================

// CharacterImageSummary surfaces the library ids next to an image list.
type CharacterImageSummary struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	LibraryDBID        *string              `json:"libraryDbId"`
	LibraryCharacterID *string              `json:"libraryCharacterId"`
	LibraryAssets      models.LibraryAssets `json:"libraryAssets"`
}

// CharacterImages is the image list of one reference.
type CharacterImages struct {
	Count     int64                           `json:"count"`
	Images    []models.CharacterImageMetadata `json:"images"`
	Character *CharacterImageSummary          `json:"character"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ListImages returns the newest images first, with their media.
func (s *ImageService) ListImages(ctx context.Context, referenceID string) (*CharacterImages, error) {
	db := s.DB.WithContext(ctx)
	out := &CharacterImages{Images: []models.CharacterImageMetadata{}}

	query := db.Model(&models.CharacterImageMetadata{}).Where("character_reference_id = ?", referenceID)
	if err := query.Session(&gorm.Session{}).Count(&out.Count).Error; err != nil {
		return nil, err
	}
	if err := query.Session(&gorm.Session{}).
		Preload("Media").
		Order("created_at DESC").
		Limit(imageListLimit).
		Find(&out.Images).Error; err != nil {
		return nil, err
	}

	var ref models.CharacterReference
	if db.Limit(1).Find(&ref, "id = ?", referenceID).RowsAffected > 0 {
		out.Character = &CharacterImageSummary{
			ID:                 ref.ID,
			Name:               ref.ProjectCharacterName,
			LibraryDBID:        optional(ref.LibraryDBID),
			LibraryCharacterID: optional(ref.LibraryCharacterID),
			LibraryAssets:      ref.LibraryAssets,
		}
	}
	return out, nil
}

// DeleteImage removes one image. Only master references held by the library
// are deleted remotely; remote failures do not stop the local cleanup.
func (s *ImageService) DeleteImage(ctx context.Context, referenceID, imageID string) error {
	db := s.DB.WithContext(ctx)
	logger := utils.GetLogger().Named("images")

	var meta models.CharacterImageMetadata
	if err := db.First(&meta, "id = ?", imageID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("Image metadata not found", err)
		}
		return err
	}
	if meta.CharacterReferenceID != referenceID {
		return apperrors.NewValidationError("Image does not belong to this character reference", nil)
	}

	if meta.Provider == models.ProviderCharacterLibrary && meta.Kind == models.ImageKindReference {
		var ref models.CharacterReference
		if db.Limit(1).Find(&ref, "id = ?", referenceID).RowsAffected > 0 && ref.LibraryDBID != "" {
			if err := s.Library.DeleteReferenceImage(ctx, ref.LibraryDBID); err != nil {
				logger.Warn("library reference deletion failed", map[string]interface{}{
					"reference_id":  referenceID,
					"library_db_id": ref.LibraryDBID,
					"error":         err.Error(),
				})
			}
		}
	}

	if meta.MediaID != nil && s.Media != nil {
		if err := s.Media.Delete(ctx, *meta.MediaID); err != nil {
			logger.Warn("media deletion failed", map[string]interface{}{
				"image_id": imageID,
				"media_id": *meta.MediaID,
				"error":    err.Error(),
			})
		}
	}

	if err := db.Delete(&models.CharacterImageMetadata{}, "id = ?", imageID).Error; err != nil {
		return fmt.Errorf("failed to delete image metadata: %w", err)
	}
	return nil
}

// ReferencePrompt returns the prompt BuildReferenceImagePrompt makes for a reference.
func (s *ImageService) ReferencePrompt(ctx context.Context, referenceID string) (string, error) {
	var ref models.CharacterReference
	if err := s.DB.WithContext(ctx).First(&ref, "id = ?", referenceID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NewNotFoundError("Character reference not found", err)
		}
		return "", err
	}
	return BuildReferenceImagePrompt(&ref), nil
}

// LibraryHealth checks the character library.
func (s *ImageService) LibraryHealth(ctx context.Context) charlib.HealthResult {
	return s.Library.HealthCheck(ctx)
}
