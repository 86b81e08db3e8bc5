package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/novelmovie/novelmovie/internal/api"
	"github.com/novelmovie/novelmovie/internal/config"
	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/di"
	"github.com/novelmovie/novelmovie/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockServer struct {
	started  chan struct{}
	shutdown chan struct{}
}

func newMockServer() *mockServer {
	return &mockServer{started: make(chan struct{}), shutdown: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	close(m.started)
	<-m.shutdown
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	close(m.shutdown)
	return nil
}

func testConfig(t *testing.T, libraryURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:                    "0",
		DataDir:                 filepath.Join(dir, "data"),
		MediaDir:                filepath.Join(dir, "media"),
		LogDir:                  filepath.Join(dir, "logs"),
		CharacterLibraryURL:     libraryURL,
		CharacterLibraryTimeout: time.Second,
		CharacterLibraryRetries: 1,
	}
}

func TestCreateDirectories(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	require.NoError(t, CreateDirectories(cfg))

	for _, dir := range []string{cfg.DataDir, cfg.MediaDir, cfg.LogDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestInitServicesRegistersEverything(t *testing.T) {
	library := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer library.Close()

	cfg := testConfig(t, library.URL)
	require.NoError(t, CreateDirectories(cfg))

	conn, err := db.OpenTest()
	require.NoError(t, err)
	defer db.Close(conn)

	container := di.NewContainer()
	require.NoError(t, InitServices(cfg, conn, container))

	for _, name := range []string{
		di.ServiceDB, di.ServiceLLM, di.ServiceGeneration, di.ServiceProjects, di.ServiceConcepts,
		di.ServiceStories, di.ServiceStructures, di.ServiceCharacters, di.ServiceImages, di.ServiceMedia,
		di.ServiceTaxonomies, di.ServiceUsers, di.ServiceConfig, di.ServiceProgress, di.ServiceCharLibrary,
		di.ServiceLocks, di.ServiceStats, di.ServiceExports, di.ServiceFundamental,
	} {
		assert.True(t, container.Has(name), name)
	}

	users, err := di.Resolve[*services.UserService](container, di.ServiceUsers)
	require.NoError(t, err)
	assert.Len(t, users.Tokens.Secret, 32)

	require.NoError(t, HealthCheck(context.Background(), container))

	svcs, err := api.ServicesFromContainer(container)
	require.NoError(t, err)
	assert.NotNil(t, svcs.Tokens)

	locks, err := di.Resolve[*services.LockManager](container, di.ServiceLocks)
	require.NoError(t, err)
	locks.Close()

	stats, err := di.Resolve[*services.StatsService](container, di.ServiceStats)
	require.NoError(t, err)
	require.NoError(t, stats.Close())
}

func TestTokenConfigUsesSecret(t *testing.T) {
	cfg := &config.Config{JWTSecret: "a-configured-secret"}
	tokens, err := tokenConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte("a-configured-secret"), tokens.Secret)
	assert.Equal(t, tokenIssuer, tokens.Issuer)
}

func TestHealthCheckMissingService(t *testing.T) {
	err := HealthCheck(context.Background(), di.NewContainer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "critical service not registered")
}

func TestRunRequiresInitialize(t *testing.T) {
	a := &App{stopChan: make(chan os.Signal, 1), done: make(chan struct{})}
	assert.Error(t, a.Run())
}

func TestRunStopsGracefully(t *testing.T) {
	server := newMockServer()
	a := &App{
		server:   server,
		stopChan: make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}

	cleaned := make(chan struct{})
	a.routerCleanup = func() { close(cleaned) }

	result := make(chan error, 1)
	go func() { result <- a.Run() }()

	select {
	case <-server.started:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	a.Stop()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}

	select {
	case <-cleaned:
	default:
		t.Fatal("router cleanup not called")
	}
}
