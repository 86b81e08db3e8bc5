package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/novelmovie/novelmovie/internal/auth"
	"github.com/novelmovie/novelmovie/internal/charlib"
	"github.com/novelmovie/novelmovie/internal/config"
	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/llm/llmtest"
	"github.com/novelmovie/novelmovie/internal/services"
	"github.com/novelmovie/novelmovie/internal/storage"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router http.Handler
	svcs   Services
}

// newTestAPI wires every service against in-memory SQLite, a failing LLM
// (so generation takes the fallback paths) and a character library that
// answers health checks.
func newTestAPI(t *testing.T, authRequired bool) *testAPI {
	t.Helper()

	conn, err := db.OpenTest()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })

	library := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(library.Close)
	client := charlib.NewClient(charlib.Config{BaseURL: library.URL, Timeout: 5 * time.Second, Retries: 1})

	mediaDir := t.TempDir()
	fs, err := storage.NewFileStorage(mediaDir)
	require.NoError(t, err)

	locks := services.NewLockManager()
	t.Cleanup(locks.Close)

	llmService := services.NewLLMServiceWithProvider("fake", llmtest.Failing(errors.New("provider down")))
	generation := services.NewGenerationService(llmService)
	progress := services.NewProgressService()
	media := services.NewMediaService(conn, fs, client, "http://localhost:8080")
	tokens := &auth.TokenConfig{Secret: []byte("test-secret"), Issuer: "novelmovie"}

	stats, err := services.NewStatsService(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stats.Close() })
	llmService.SetUsageRecorder(stats)

	svcs := Services{
		DB:          conn,
		LLM:         llmService,
		Projects:    services.NewProjectService(conn, generation, media),
		Concepts:    services.NewConceptService(conn, generation),
		Stories:     services.NewStoryService(conn, generation, locks),
		Structures:  services.NewStructureService(conn, generation),
		Characters:  services.NewCharacterService(conn, generation, client, progress, media, locks),
		Images:      services.NewImageService(conn, client, media),
		Taxonomies:  services.NewTaxonomyService(conn),
		Users:       services.NewUserService(conn, tokens),
		Settings:    services.NewConfigService(llmService),
		Progress:    progress,
		Stats:       stats,
		Exports:     services.NewExportService(conn, ""),
		Fundamental: services.NewFundamentalDataService(conn),
		Tokens:      tokens,
	}

	cfg := &config.Config{
		MediaDir:           mediaDir,
		AuthRequired:       authRequired,
		CORSAllowedOrigins: []string{"http://localhost:3001"},
	}
	router, cleanup := NewRouter(cfg, svcs)
	t.Cleanup(cleanup)
	return &testAPI{router: router, svcs: svcs}
}

// do sends a JSON request and decodes the envelope.
func (a *testAPI) do(t *testing.T, method, path string, body interface{}, token ...string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if len(token) > 0 {
		req.Header.Set("Authorization", "Bearer "+token[0])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

// dataMap returns the envelope data as a map.
func dataMap(t *testing.T, resp APIResponse) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}
