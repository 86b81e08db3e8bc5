package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubDownloader struct {
	data        []byte
	contentType string
	err         error
	urls        []string
}

func (d *stubDownloader) DownloadImage(_ context.Context, url string) ([]byte, string, error) {
	d.urls = append(d.urls, url)
	return d.data, d.contentType, d.err
}

func newTestMedia(t *testing.T, downloader ImageDownloader) *MediaService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewMediaService(newTestDB(t), fs, downloader, "http://localhost:8080/")
}

func TestMediaIngest(t *testing.T) {
	dl := &stubDownloader{data: pngBytes, contentType: "image/png"}
	svc := newTestMedia(t, dl)
	ctx := context.Background()

	media, err := svc.Ingest(ctx, "https://cdn.example.com/img/ref.png?sig=abc", "Mara Vell", "Mara Vell - reference image")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://cdn.example.com/img/ref.png?sig=abc"}, dl.urls)
	assert.Equal(t, "image/png", media.MimeType)
	assert.Equal(t, int64(len(pngBytes)), media.Filesize)
	assert.Equal(t, "Mara Vell - reference image", media.Alt)
	assert.Contains(t, media.Filename, ".png")
	assert.Equal(t, "http://localhost:8080/media/"+media.Filename, media.URL)
	assert.True(t, svc.Storage.Exists(media.Filename))

	var stored models.Media
	require.NoError(t, svc.DB.First(&stored, "id = ?", media.ID).Error)
	assert.Equal(t, media.Filename, stored.Filename)
}

func TestMediaIngestDownloadFailure(t *testing.T) {
	svc := newTestMedia(t, &stubDownloader{err: errors.New("boom")})

	_, err := svc.Ingest(context.Background(), "https://cdn.example.com/x.png", "x", "")
	require.Error(t, err)

	var count int64
	svc.DB.Model(&models.Media{}).Count(&count)
	assert.Zero(t, count)
}

func TestMediaSaveRejectsEmpty(t *testing.T) {
	svc := newTestMedia(t, nil)
	_, err := svc.Save(context.Background(), "x", "x.png", nil, "image/png", "")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestMediaDelete(t *testing.T) {
	svc := newTestMedia(t, nil)
	ctx := context.Background()

	media, err := svc.Save(ctx, "poster", "poster.png", pngBytes, "", "poster")
	require.NoError(t, err)
	assert.Equal(t, "image/png", media.MimeType)

	require.NoError(t, svc.Delete(ctx, media.ID))
	assert.False(t, svc.Storage.Exists(media.Filename))

	_, err = svc.Get(ctx, media.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.True(t, apperrors.IsNotFoundError(svc.Delete(ctx, media.ID)))
}
