package charlib

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second, Retries: 3})
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, exponentialBackoff(1))
	assert.Equal(t, 4*time.Second, exponentialBackoff(2))
	assert.Equal(t, 8*time.Second, exponentialBackoff(3))
	assert.Equal(t, maxBackoff, exponentialBackoff(10))
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"publicUrl":"https://cdn.example.com/a.png","imageId":"img-1"}`))
	})

	result, err := c.GenerateInitialImage(context.Background(), "char-1", "portrait")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, "https://cdn.example.com/a.png", result.SourceURL())
	assert.Equal(t, "img-1", result.ExternalID())
	assert.True(t, result.Succeeded())
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GenerateInitialImage(context.Background(), "char-1", "portrait")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.DeleteReferenceImage(context.Background(), "db-1")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestCreateNovelMovieCharacterPayload(t *testing.T) {
	var got NovelMovieCharacterRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathNovelMovieCharacters, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"characterId":"lib-42","id":"db-42"}`))
	})

	profile := FallbackProfile("Mara Quinn", "Glass Harbor")
	profile.Relationships = []Relationship{{CharacterName: "Eli", RelationshipType: "brother", RelationshipDynamic: "protective"}}

	resp, err := c.CreateNovelMovieCharacter(context.Background(), profile, ProjectRef{ID: "0123456789abcdef", Name: "Glass Harbor"})
	require.NoError(t, err)
	assert.Equal(t, "lib-42", resp.CharacterID)
	assert.Equal(t, "db-42", resp.ID)

	assert.Equal(t, "0123456789abcdef", got.NovelMovieProjectID)
	assert.Equal(t, "novel-movie-wins", got.SyncSettings.ConflictResolution)
	assert.True(t, got.SyncSettings.AutoSync)
	assert.Equal(t, "in_development", got.CharacterData.Status)
	assert.True(t, strings.HasPrefix(got.CharacterData.CharacterID, "01234567-mara-quinn-"))
	assert.Equal(t, "Mara Quinn is a character in Glass Harbor", got.CharacterData.Biography.PlainText())
	assert.Equal(t, "Eli: brother - protective", got.CharacterData.Relationships.PlainText())
	require.NotNil(t, got.CharacterData.Age)
	assert.Equal(t, 30, *got.CharacterData.Age)
	require.Len(t, got.CharacterData.Skills, 2)
	assert.Equal(t, "Core Motivation", got.CharacterData.Skills[0].Skill)
	assert.Equal(t, "Glass Harbor", got.CharacterData.NovelMovieIntegration.ProjectName)
}

func TestGenerate360SetNestedImages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var opts Set360Options
		require.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
		assert.Equal(t, "character_turnaround", opts.Style)
		assert.Equal(t, 8, opts.ImageCount)
		_, _ = w.Write([]byte(`{"success":true,"data":{"images":[{"url":"/media/a.png","dinoAssetId":"d1"},{"imageUrl":"/media/b.png"}]}}`))
	})

	resp, err := c.Generate360Set(context.Background(), "lib-1", Set360Options{Style: "character_turnaround", QualityThreshold: 70, ImageCount: 8})
	require.NoError(t, err)
	images := resp.AllImages()
	require.Len(t, images, 2)
	assert.Equal(t, "/media/a.png", images[0].SourceURL())
	assert.Equal(t, "d1", images[0].ExternalID())
	assert.Equal(t, "/media/b.png", images[1].SourceURL())
}

func TestGenerateSceneImageDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dialogue", body["sceneType"])
		assert.Equal(t, "rooftop at dusk", body["sceneContext"])
		_, _ = w.Write([]byte(`{"success":false,"error":"busy"}`))
	})

	result, err := c.GenerateSceneImage(context.Background(), "lib-1", SceneContext{Description: "rooftop at dusk"})
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
}

func TestGenerateSmartImageDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body SmartImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 5, body.MaxRetries)
		assert.Equal(t, 70, body.QualityThreshold)
		assert.Equal(t, 85, body.ConsistencyThreshold)
		assert.Equal(t, "character_production", body.Style)
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"publicUrl":"https://x/y.png"}}`))
	})

	resp, err := c.GenerateSmartImage(context.Background(), "lib-1", SmartImageRequest{Prompt: "hero shot"})
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "https://x/y.png", resp.Data.SourceURL())
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathHealth, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	result := healthy.HealthCheck(context.Background())
	assert.True(t, result.IsHealthy)
	assert.Empty(t, result.Error)

	degraded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	})
	assert.False(t, degraded.HealthCheck(context.Background()).IsHealthy)

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	result = down.HealthCheck(context.Background())
	assert.False(t, result.IsHealthy)
	assert.Contains(t, result.Error, "HTTP 500")
}

func TestDownloadImageResolvesRelativeURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media/ref.png", r.URL.Path)
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write([]byte("PNGDATA"))
	})

	data, contentType, err := c.DownloadImage(context.Background(), "/media/ref.png")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
	assert.Equal(t, "image/png", contentType)
}

func TestGenerateUniqueCharacterID(t *testing.T) {
	c := NewClient(Config{})
	a := c.GenerateUniqueCharacterID("Dr. Ada  Löwe!!", "")
	b := c.GenerateUniqueCharacterID("Dr. Ada  Löwe!!", "")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "nm-dr-ada-lwe-"), a)
	assert.Len(t, strings.Split(a, "-"), 7)

	assert.Equal(t, "a-very-long-characte", NameSlug("A very long character name"))
	assert.Equal(t, "", NameSlug("!!!"))
}

func TestBulkCreateNovelMovieCharacters(t *testing.T) {
	var got BulkNovelMovieRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathBulkNovelMovie, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"characters":[{"id":"db-1","characterId":"lib-1"},{"id":"db-2"}]}`))
	})

	profiles := []CharacterProfile{FallbackProfile("Mara Quinn", "Glass Harbor"), FallbackProfile("Eli Quinn", "Glass Harbor")}
	resp, err := c.BulkCreateNovelMovieCharacters(context.Background(), profiles, ProjectRef{ID: "0123456789abcdef", Name: "Glass Harbor"})
	require.NoError(t, err)

	assert.Equal(t, "create", got.Operation)
	assert.Equal(t, "0123456789abcdef", got.ProjectID)
	require.Len(t, got.Characters, 2)
	assert.Equal(t, "Eli Quinn", got.Characters[1].CharacterData.Name)

	require.Len(t, resp.Characters, 2)
	assert.Equal(t, "lib-1", resp.Characters[0].CharacterID)
	assert.Equal(t, "db-2", resp.Characters[1].ID)
	assert.Equal(t, got.Characters[1].CharacterData.CharacterID, resp.Characters[1].CharacterID)
}

func TestDeleteCharacter(t *testing.T) {
	var method, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteCharacter(context.Background(), "db-7"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/api/v1/characters/db-7", path)
}
