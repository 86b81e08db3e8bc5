// internal/storage/file_storage.go
package storage

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStorage is the blob store behind the media collection.
type FileStorage struct {
	BaseDir string

	// path -> *sync.RWMutex
	fileLocks sync.Map
}

// StoredFile describes a blob written by Save.
type StoredFile struct {
	Filename string
	Path     string
	MimeType string
	Size     int64
}

// NewFileStorage creates baseDir when missing.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{BaseDir: baseDir}, nil
}

func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// resolve rejects names escaping BaseDir.
func (fs *FileStorage) resolve(filename string) (string, error) {
	clean := filepath.Clean("/" + filename)
	if clean == "/" || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return filepath.Join(fs.BaseDir, clean), nil
}

// Save writes content atomically and returns the stored file. An empty
// mimeType is sniffed from the content.
func (fs *FileStorage) Save(filename string, content []byte, mimeType string) (*StoredFile, error) {
	fullPath, err := fs.resolve(filename)
	if err != nil {
		return nil, err
	}

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	if mimeType == "" {
		mimeType = DetectMimeType(filename, content)
	}

	return &StoredFile{
		Filename: filename,
		Path:     fullPath,
		MimeType: mimeType,
		Size:     int64(len(content)),
	}, nil
}

// SaveReader drains r into filename.
func (fs *FileStorage) SaveReader(filename string, r io.Reader, mimeType string) (*StoredFile, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return fs.Save(filename, content, mimeType)
}

// Load reads a stored file.
func (fs *FileStorage) Load(filename string) ([]byte, error) {
	fullPath, err := fs.resolve(filename)
	if err != nil {
		return nil, err
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

func (fs *FileStorage) Exists(filename string) bool {
	fullPath, err := fs.resolve(filename)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Delete removes a stored file. Missing files are not an error.
func (fs *FileStorage) Delete(filename string) error {
	fullPath, err := fs.resolve(filename)
	if err != nil {
		return err
	}

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	fs.fileLocks.Delete(fullPath)
	return nil
}

// UniqueFilename builds a collision free name keeping the extension of hint.
func UniqueFilename(prefix, hint, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(hint))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if ext == "" || len(ext) > 5 {
		ext = ".png"
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("%s-%s%s", sanitize(prefix), uuid.NewString()[:8], ext)
}

// DetectMimeType uses the extension first, then the content.
func DetectMimeType(filename string, content []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return strings.SplitN(byExt, ";", 2)[0]
	}
	return strings.SplitN(http.DetectContentType(content), ";", 2)[0]
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "file"
	}
	return out
}
