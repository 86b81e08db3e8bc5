// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/novelmovie/novelmovie/internal/api"
	"github.com/novelmovie/novelmovie/internal/auth"
	"github.com/novelmovie/novelmovie/internal/charlib"
	"github.com/novelmovie/novelmovie/internal/config"
	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/di"
	"github.com/novelmovie/novelmovie/internal/services"
	"github.com/novelmovie/novelmovie/internal/storage"
	"github.com/novelmovie/novelmovie/internal/utils"
	"gorm.io/gorm"

	// LLM providers register themselves
	_ "github.com/novelmovie/novelmovie/internal/llm/providers/google"
	_ "github.com/novelmovie/novelmovie/internal/llm/providers/openrouter"
)

const (
	shutdownTimeout      = 30 * time.Second
	progressCleanupEvery = 10 * time.Minute
	progressMaxAge       = time.Hour
	tokenIssuer          = "novel-movie"
)

// Server is the part of *http.Server the app drives.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App owns the process lifecycle.
type App struct {
	config        *config.Config
	router        http.Handler
	server        Server
	routerCleanup func()
	stopChan      chan os.Signal
	stopOnce      sync.Once
	done          chan struct{}
}

var (
	instance *App
	appMutex sync.Mutex
)

// GetApp returns the process app.
func GetApp() *App {
	appMutex.Lock()
	defer appMutex.Unlock()
	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
			done:     make(chan struct{}),
		}
	}
	return instance
}

// CreateDirectories makes the data, media and log directories.
func CreateDirectories(cfg *config.Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.MediaDir, cfg.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// tokenConfig signs with JWT_SECRET, or with a random key that does not
// survive a restart.
func tokenConfig(cfg *config.Config) (*auth.TokenConfig, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		key, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
		secret = key
		utils.GetLogger().Named("app").Warn("JWT_SECRET not set, tokens will not survive a restart", nil)
	}
	return &auth.TokenConfig{Secret: secret, Expiration: auth.DefaultExpiration, Issuer: tokenIssuer}, nil
}

// NewLibraryClient builds the character library client from cfg.
func NewLibraryClient(cfg *config.Config) *charlib.Client {
	return charlib.NewClient(charlib.Config{
		BaseURL: cfg.CharacterLibraryURL,
		Timeout: cfg.CharacterLibraryTimeout,
		Retries: cfg.CharacterLibraryRetries,
	})
}

// InitServices builds every service in dependency order and registers it
// in container.
func InitServices(cfg *config.Config, conn *gorm.DB, container *di.Container) error {
	logger := utils.GetLogger().Named("app")

	tokens, err := tokenConfig(cfg)
	if err != nil {
		return err
	}

	fileStorage, err := storage.NewFileStorage(cfg.MediaDir)
	if err != nil {
		return fmt.Errorf("failed to open media storage: %w", err)
	}

	stats, err := services.NewStatsService(cfg.DataDir)
	if err != nil {
		return err
	}

	llmService := services.NewLLMService()
	llmService.SetUsageRecorder(stats)
	if !llmService.IsReady() {
		logger.Warn("LLM service not ready", map[string]interface{}{"state": llmService.GetReadyState()})
	}

	library := NewLibraryClient(cfg)
	locks := services.NewLockManager()
	progress := services.NewProgressService()
	generation := services.NewGenerationService(llmService)
	media := services.NewMediaService(conn, fileStorage, library, cfg.PublicBaseURL)

	container.Register(di.ServiceDB, conn)
	container.Register(di.ServiceLLM, llmService)
	container.Register(di.ServiceGeneration, generation)
	container.Register(di.ServiceProgress, progress)
	container.Register(di.ServiceCharLibrary, library)
	container.Register(di.ServiceMedia, media)
	container.Register(di.ServiceLocks, locks)
	container.Register(di.ServiceProjects, services.NewProjectService(conn, generation, media))
	container.Register(di.ServiceConcepts, services.NewConceptService(conn, generation))
	container.Register(di.ServiceStories, services.NewStoryService(conn, generation, locks))
	container.Register(di.ServiceStructures, services.NewStructureService(conn, generation))
	container.Register(di.ServiceCharacters, services.NewCharacterService(conn, generation, library, progress, media, locks))
	container.Register(di.ServiceImages, services.NewImageService(conn, library, media))
	container.Register(di.ServiceTaxonomies, services.NewTaxonomyService(conn))
	container.Register(di.ServiceUsers, services.NewUserService(conn, tokens))
	container.Register(di.ServiceConfig, services.NewConfigService(llmService))
	container.Register(di.ServiceStats, stats)
	container.Register(di.ServiceFundamental, services.NewFundamentalDataService(conn))
	container.Register(di.ServiceExports, services.NewExportService(conn, filepath.Join(cfg.DataDir, "exports")))

	logger.Info("services initialized", map[string]interface{}{"count": len(container.GetNames())})
	return nil
}

// HealthCheck verifies the critical services are registered and reachable.
func HealthCheck(ctx context.Context, container *di.Container) error {
	for _, name := range []string{di.ServiceDB, di.ServiceLLM, di.ServiceProjects, di.ServiceCharacters, di.ServiceConfig} {
		if !container.Has(name) {
			return fmt.Errorf("critical service not registered: %s", name)
		}
	}
	conn, err := di.Resolve[*gorm.DB](container, di.ServiceDB)
	if err != nil {
		return err
	}
	if err := db.Ping(conn); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	library, err := di.Resolve[*charlib.Client](container, di.ServiceCharLibrary)
	if err != nil {
		return err
	}
	if result := library.HealthCheck(ctx); !result.IsHealthy {
		utils.GetLogger().Named("app").Warn("character library unhealthy", map[string]interface{}{
			"error":         result.Error,
			"response_time": result.ResponseTime,
		})
	}
	return nil
}

// Initialize runs the full startup sequence: directories, logger, runtime
// settings, database, services and router.
func (a *App) Initialize(cfg *config.Config) error {
	if err := CreateDirectories(cfg); err != nil {
		return err
	}
	if err := utils.InitLogger(cfg.LogDir, cfg.DebugMode); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	if err := config.InitConfigFrom(cfg, cfg.DataDir); err != nil {
		return fmt.Errorf("failed to init config store: %w", err)
	}

	conn, err := db.Open(cfg.DatabaseURL, db.Options{Debug: cfg.DebugMode})
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	container := di.GetContainer()
	if err := InitServices(cfg, conn, container); err != nil {
		return err
	}
	if err := HealthCheck(context.Background(), container); err != nil {
		utils.GetLogger().Named("app").Warn("health check warning", map[string]interface{}{"error": err.Error()})
	}

	router, cleanup, err := api.SetupRouter(cfg)
	if err != nil {
		return err
	}

	a.config = cfg
	a.router = router
	a.routerCleanup = cleanup
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves until SIGINT/SIGTERM or Stop, then shuts down gracefully.
func (a *App) Run() error {
	if a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	logger := utils.GetLogger().Named("app")

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	if a.config != nil {
		logger.Info("server listening", map[string]interface{}{"port": a.config.Port})
	}

	go a.sweepProgress()

	select {
	case err := <-serveErr:
		if err != nil {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
		<-a.stopChan
	case <-a.stopChan:
	}

	logger.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped", nil)
	return nil
}

// Stop asks Run to shut down.
func (a *App) Stop() {
	a.stopChan <- syscall.SIGTERM
}

// sweepProgress drops finished progress trackers until shutdown.
func (a *App) sweepProgress() {
	progress, err := di.Resolve[*services.ProgressService](di.GetContainer(), di.ServiceProgress)
	if err != nil {
		return
	}
	ticker := time.NewTicker(progressCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			progress.CleanupCompletedTasks(progressMaxAge)
		case <-a.done:
			return
		}
	}
}

// cleanup releases services in reverse dependency order.
func (a *App) cleanup() {
	a.stopOnce.Do(func() {
		close(a.done)
		if a.routerCleanup != nil {
			a.routerCleanup()
		}

		container := di.GetContainer()
		if locks, err := di.Resolve[*services.LockManager](container, di.ServiceLocks); err == nil {
			locks.Close()
		}
		if stats, err := di.Resolve[*services.StatsService](container, di.ServiceStats); err == nil {
			_ = stats.Close()
		}
		if llmService, err := di.Resolve[*services.LLMService](container, di.ServiceLLM); err == nil {
			_ = llmService.Close()
		}
		if conn, err := di.Resolve[*gorm.DB](container, di.ServiceDB); err == nil {
			_ = db.Close(conn)
		}
		_ = utils.GetLogger().Sync()
	})
}
