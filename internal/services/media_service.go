// internal/services/media_service.go
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/storage"
	"github.com/novelmovie/novelmovie/internal/utils"
)

// MediaRoute is where stored files are served.
const MediaRoute = "/media"

// ImageDownloader fetches a remote image.
type ImageDownloader interface {
	DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

// MediaService stores blobs on disk and records them as Media rows.
type MediaService struct {
	DB            *gorm.DB
	Storage       *storage.FileStorage
	Downloader    ImageDownloader
	PublicBaseURL string
}

func NewMediaService(db *gorm.DB, fileStorage *storage.FileStorage, downloader ImageDownloader, publicBaseURL string) *MediaService {
	return &MediaService{
		DB:            db,
		Storage:       fileStorage,
		Downloader:    downloader,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// PublicURL returns the served URL of a stored filename.
func (s *MediaService) PublicURL(filename string) string {
	return s.PublicBaseURL + MediaRoute + "/" + url.PathEscape(filename)
}

// Save writes data and creates the Media row. The file is removed again if
// the row cannot be written.
func (s *MediaService) Save(ctx context.Context, prefix, nameHint string, data []byte, mimeType, alt string) (*models.Media, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("media content is empty", nil)
	}
	if mimeType == "" {
		mimeType = storage.DetectMimeType(nameHint, data)
	}

	filename := storage.UniqueFilename(prefix, nameHint, mimeType)
	stored, err := s.Storage.Save(filename, data, mimeType)
	if err != nil {
		return nil, err
	}

	media := &models.Media{
		Filename:    stored.Filename,
		MimeType:    stored.MimeType,
		Filesize:    stored.Size,
		Alt:         alt,
		URL:         s.PublicURL(stored.Filename),
		StoragePath: stored.Path,
	}
	if err := s.DB.WithContext(ctx).Create(media).Error; err != nil {
		_ = s.Storage.Delete(stored.Filename)
		return nil, fmt.Errorf("failed to create media record: %w", err)
	}
	return media, nil
}

// Ingest downloads sourceURL and stores it locally.
func (s *MediaService) Ingest(ctx context.Context, sourceURL, prefix, alt string) (*models.Media, error) {
	if s.Downloader == nil {
		return nil, fmt.Errorf("no image downloader configured")
	}
	data, contentType, err := s.Downloader.DownloadImage(ctx, sourceURL)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("failed to download image", err)
	}

	hint := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		hint = path.Base(u.Path)
	}
	return s.Save(ctx, prefix, hint, data, contentType, alt)
}

func (s *MediaService) Get(ctx context.Context, id string) (*models.Media, error) {
	var media models.Media
	if err := s.DB.WithContext(ctx).First(&media, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Media not found", err)
		}
		return nil, err
	}
	return &media, nil
}

// Delete removes the row, then the file. A missing file is not an error.
func (s *MediaService) Delete(ctx context.Context, id string) error {
	media, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(media).Error; err != nil {
		return fmt.Errorf("failed to delete media record: %w", err)
	}
	if err := s.Storage.Delete(media.Filename); err != nil {
		utils.GetLogger().Warn("media file delete failed", map[string]interface{}{
			"media_id": id,
			"filename": media.Filename,
			"error":    err.Error(),
		})
	}
	return nil
}
