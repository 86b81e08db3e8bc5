// internal/charlib/client.go
package charlib

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	mrand "math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/novelmovie/novelmovie/internal/utils"
)

const (
	DefaultBaseURL    = "https://character.ft.tc"
	DefaultTimeout    = 60 * time.Second
	DefaultRetries    = 3
	healthTimeout     = 10 * time.Second
	maxBackoff        = 30 * time.Second
	maxErrorBody      = 2048
	maxImageDownload  = 25 << 20
	defaultSmartStyle = "character_production"
)

// Endpoints of the character library API.
const (
	pathCharacters           = "/api/v1/characters"
	pathNovelMovieCharacters = "/api/v1/characters/novel-movie"
	pathBulkNovelMovie       = "/api/v1/characters/bulk/novel-movie"
	pathQuery                = "/api/v1/characters/query"
	pathGenerateInitial      = "/api/v1/characters/%s/generate-initial-image"
	pathGenerate360          = "/api/v1/characters/%s/generate-360-set"
	pathGenerateScene        = "/api/v1/characters/%s/generate-scene-image"
	pathGenerateSmart        = "/api/v1/characters/%s/generate-smart-image"
	pathReferenceImage       = "/api/v1/characters/%s/reference-image"
	pathHealth               = "/api/health"
)

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// APIError is a non 2xx answer from the library.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Retryable reports whether another attempt may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the external character library.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    func(attempt int) time.Duration
	now        func() time.Time
	metrics    *utils.MetricsCollector
	idCounter  atomic.Int64
}

// NewClient applies defaults for zero fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retries:    cfg.Retries,
		backoff:    exponentialBackoff,
		now:        func() time.Time { return time.Now().UTC() },
		metrics:    utils.GetMetricsCollector(),
	}
	c.idCounter.Store(int64(mrand.Intn(1000)))
	return c
}

// BaseURL returns the configured library URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// exponentialBackoff waits 2^attempt seconds, capped.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// doRequest sends a JSON request with bounded retries. out may be nil.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	logger := utils.GetLogger()
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		start := time.Now()
		status, err := c.once(ctx, method, path, payload, out)
		c.metrics.RecordLibraryRequest(status, time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err

		logger.Warn("Character library request failed", map[string]interface{}{
			"method":  method,
			"path":    path,
			"attempt": attempt,
			"error":   err,
		})

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return fmt.Errorf("character library API error: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.retries {
			break
		}

		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("character library API failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out interface{}) (int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// ==================== Characters ====================

// CreateNovelMovieCharacter registers a developed character with the library.
func (c *Client) CreateNovelMovieCharacter(ctx context.Context, profile CharacterProfile, project ProjectRef) (*CreateCharacterResponse, error) {
	request := NovelMovieCharacterRequest{
		NovelMovieProjectID: project.ID,
		ProjectName:         project.Name,
		CharacterData:       c.ToCharacterData(profile, project),
		SyncSettings: SyncSettings{
			AutoSync:           true,
			ConflictResolution: "novel-movie-wins",
		},
	}

	var resp CreateCharacterResponse
	if err := c.doRequest(ctx, http.MethodPost, pathNovelMovieCharacters, request, &resp); err != nil {
		return nil, err
	}
	if resp.CharacterID == "" {
		resp.CharacterID = request.CharacterData.CharacterID
	}
	return &resp, nil
}

// BulkCreateNovelMovieCharacters registers several characters of one
// project in a single call. Missing character IDs in the answer are filled
// from the request.
func (c *Client) BulkCreateNovelMovieCharacters(ctx context.Context, profiles []CharacterProfile, project ProjectRef) (*BulkCreateResponse, error) {
	request := BulkNovelMovieRequest{
		ProjectID:  project.ID,
		Characters: make([]BulkCharacterItem, len(profiles)),
		Operation:  "create",
		SyncSettings: SyncSettings{
			AutoSync:           true,
			ConflictResolution: "novel-movie-wins",
		},
	}
	for i, profile := range profiles {
		request.Characters[i] = BulkCharacterItem{CharacterData: c.ToCharacterData(profile, project)}
	}

	var resp BulkCreateResponse
	if err := c.doRequest(ctx, http.MethodPost, pathBulkNovelMovie, request, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Characters {
		if resp.Characters[i].CharacterID == "" && i < len(request.Characters) {
			resp.Characters[i].CharacterID = request.Characters[i].CharacterData.CharacterID
		}
	}
	return &resp, nil
}

// DeleteCharacter removes a library record by its database ID.
func (c *Client) DeleteCharacter(ctx context.Context, libraryDBID string) error {
	return c.doRequest(ctx, http.MethodDelete, pathCharacters+"/"+url.PathEscape(libraryDBID), nil, nil)
}

// GetCharacter returns the raw library record.
func (c *Client) GetCharacter(ctx context.Context, characterID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.doRequest(ctx, http.MethodGet, pathCharacters+"/"+url.PathEscape(characterID), nil, &out)
	return out, err
}

// QueryCharacters runs a natural language query against the library.
func (c *Client) QueryCharacters(ctx context.Context, query string) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.doRequest(ctx, http.MethodPost, pathQuery, map[string]string{"query": query}, &out)
	return out, err
}

// ==================== Images ====================

func (c *Client) GenerateInitialImage(ctx context.Context, characterID, prompt string) (*ImageResult, error) {
	var out ImageResult
	path := fmt.Sprintf(pathGenerateInitial, url.PathEscape(characterID))
	if err := c.doRequest(ctx, http.MethodPost, path, map[string]string{"prompt": prompt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Generate360Set(ctx context.Context, characterID string, opts Set360Options) (*ImageSetResponse, error) {
	var out ImageSetResponse
	path := fmt.Sprintf(pathGenerate360, url.PathEscape(characterID))
	if err := c.doRequest(ctx, http.MethodPost, path, opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateSceneImage(ctx context.Context, characterID string, scene SceneContext) (*ImageResult, error) {
	sceneType := scene.Type
	if sceneType == "" {
		sceneType = "dialogue"
	}

	var out ImageResult
	path := fmt.Sprintf(pathGenerateScene, url.PathEscape(characterID))
	err := c.doRequest(ctx, http.MethodPost, path, sceneImageRequest{
		SceneContext:  scene.Description,
		SceneType:     sceneType,
		Mood:          scene.Mood,
		LightingStyle: scene.Lighting,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateSmartImage fills the library's quality defaults.
func (c *Client) GenerateSmartImage(ctx context.Context, characterID string, req SmartImageRequest) (*SmartImageResponse, error) {
	if req.MaxRetries == 0 {
		req.MaxRetries = 5
	}
	if req.QualityThreshold == 0 {
		req.QualityThreshold = 70
	}
	if req.ConsistencyThreshold == 0 {
		req.ConsistencyThreshold = 85
	}
	if req.Style == "" {
		req.Style = defaultSmartStyle
	}

	var out SmartImageResponse
	path := fmt.Sprintf(pathGenerateSmart, url.PathEscape(characterID))
	if err := c.doRequest(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteReferenceImage removes the master reference image of a library record.
func (c *Client) DeleteReferenceImage(ctx context.Context, libraryDBID string) error {
	path := fmt.Sprintf(pathReferenceImage, url.PathEscape(libraryDBID))
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// DownloadImage fetches an image produced by the library. Relative URLs are
// resolved against the base URL.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if strings.HasPrefix(imageURL, "/") {
		imageURL = c.baseURL + imageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageDownload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	contentType := strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]
	return data, strings.TrimSpace(contentType), nil
}

// ==================== Health ====================

// HealthCheck calls /api/health once. It never returns an error; failures
// are reported in the result.
func (c *Client) HealthCheck(ctx context.Context) HealthResult {
	start := time.Now()
	result := HealthResult{Timestamp: c.now()}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var body struct {
		Status string `json:"status"`
	}
	_, err := c.once(ctx, http.MethodGet, pathHealth, nil, &body)
	result.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = fmt.Sprintf("Health check failed: %v", err)
		return result
	}

	result.IsHealthy = body.Status == "ok"
	if !result.IsHealthy {
		result.Error = fmt.Sprintf("unexpected status %q", body.Status)
	}
	return result
}
