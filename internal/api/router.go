// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/novelmovie/novelmovie/internal/config"
	"github.com/novelmovie/novelmovie/internal/di"
	"github.com/novelmovie/novelmovie/internal/services"
	"gorm.io/gorm"
)

const (
	aiRateLimit  = 20
	aiRateWindow = time.Minute
)

// ServicesFromContainer resolves the handler dependencies registered by the app.
func ServicesFromContainer(container *di.Container) (Services, error) {
	var (
		svcs Services
		err  error
	)
	resolve := func(name string, assign func(interface{}) bool) {
		if err != nil {
			return
		}
		service := container.Get(name)
		if service == nil || !assign(service) {
			err = fmt.Errorf("service %q not initialized", name)
		}
	}

	resolve(di.ServiceDB, func(v interface{}) (ok bool) { svcs.DB, ok = v.(*gorm.DB); return })
	resolve(di.ServiceLLM, func(v interface{}) (ok bool) { svcs.LLM, ok = v.(*services.LLMService); return })
	resolve(di.ServiceProjects, func(v interface{}) (ok bool) { svcs.Projects, ok = v.(*services.ProjectService); return })
	resolve(di.ServiceConcepts, func(v interface{}) (ok bool) { svcs.Concepts, ok = v.(*services.ConceptService); return })
	resolve(di.ServiceStories, func(v interface{}) (ok bool) { svcs.Stories, ok = v.(*services.StoryService); return })
	resolve(di.ServiceStructures, func(v interface{}) (ok bool) { svcs.Structures, ok = v.(*services.StructureService); return })
	resolve(di.ServiceCharacters, func(v interface{}) (ok bool) { svcs.Characters, ok = v.(*services.CharacterService); return })
	resolve(di.ServiceImages, func(v interface{}) (ok bool) { svcs.Images, ok = v.(*services.ImageService); return })
	resolve(di.ServiceTaxonomies, func(v interface{}) (ok bool) { svcs.Taxonomies, ok = v.(*services.TaxonomyService); return })
	resolve(di.ServiceUsers, func(v interface{}) (ok bool) { svcs.Users, ok = v.(*services.UserService); return })
	resolve(di.ServiceConfig, func(v interface{}) (ok bool) { svcs.Settings, ok = v.(*services.ConfigService); return })
	resolve(di.ServiceProgress, func(v interface{}) (ok bool) { svcs.Progress, ok = v.(*services.ProgressService); return })
	resolve(di.ServiceStats, func(v interface{}) (ok bool) { svcs.Stats, ok = v.(*services.StatsService); return })
	resolve(di.ServiceExports, func(v interface{}) (ok bool) { svcs.Exports, ok = v.(*services.ExportService); return })
	resolve(di.ServiceFundamental, func(v interface{}) (ok bool) {
		svcs.Fundamental, ok = v.(*services.FundamentalDataService)
		return
	})
	if err != nil {
		return Services{}, err
	}
	svcs.Tokens = svcs.Users.Tokens
	return svcs, nil
}

// SetupRouter builds the engine from the services in the process container.
func SetupRouter(cfg *config.Config) (*gin.Engine, func(), error) {
	svcs, err := ServicesFromContainer(di.GetContainer())
	if err != nil {
		return nil, nil, err
	}
	engine, cleanup := NewRouter(cfg, svcs)
	return engine, cleanup, nil
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     cfg.CORSAllowedMethods,
		AllowHeaders:     cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		ExposeHeaders: []string{
			requestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		MaxAge: 12 * time.Hour,
	}
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowAllOrigins = true
		}
	}
	if len(corsConfig.AllowMethods) == 0 {
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(corsConfig.AllowHeaders) == 0 {
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	}
	return cors.New(corsConfig)
}

// NewRouter wires every route. The returned func releases the rate limiter
// and closes open websockets.
func NewRouter(cfg *config.Config, svcs Services) (*gin.Engine, func()) {
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := NewHandler(svcs)
	limiter := NewRateLimiter()
	aiLimit := AIRateLimit(limiter, aiRateLimit, aiRateWindow)

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(), corsMiddleware(cfg))

	if cfg.MediaDir != "" {
		r.Static(services.MediaRoute, cfg.MediaDir)
	}

	r.GET("/api/health", handler.Health)
	r.GET("/api/metrics", handler.Metrics)

	v1 := r.Group("/v1")
	v1.Use(AuthMiddleware(svcs.Tokens, cfg.AuthRequired))
	{
		// accounts and progress stay reachable for guests
		users := v1.Group("/users")
		{
			users.POST("", handler.CreateUser)
			users.POST("/login", handler.Login)
			users.GET("/me", RequireAuth(), handler.CurrentUser)
		}

		v1.GET("/progress/:taskId", handler.ProgressSnapshot)
		v1.GET("/progress/:taskId/ws", handler.ProgressWebSocket)

		v1.GET("/config/:collection", handler.ListCollection)
		v1.GET("/movie-formats", handler.ListMovieFormats)
		v1.GET("/character-library/health", handler.CharacterLibraryHealth)

		settings := v1.Group("/settings", RequireAdmin(cfg.AuthRequired))
		{
			settings.GET("/llm", handler.GetLLMSettings)
			settings.PUT("/llm", handler.UpdateLLMSettings)
			settings.GET("/llm/history", handler.LLMSettingsHistory)
			settings.GET("/llm/usage", handler.LLMUsage)
		}

		guarded := v1.Group("", RequireUserForWrites(cfg.AuthRequired))

		projects := guarded.Group("/projects")
		{
			projects.GET("", handler.ListProjects)
			projects.POST("", handler.CreateProject)
			projects.POST("/ai-autofill", aiLimit, handler.AutofillProject)
			projects.POST("/core-elements-autofill", aiLimit, handler.CoreElementsAutofill)
			projects.GET("/:id", handler.GetProject)
			projects.PUT("/:id", handler.UpdateProject)
			projects.PATCH("/:id", handler.UpdateProject)
			projects.DELETE("/:id", handler.DeleteProject)
			projects.GET("/:id/export", handler.ExportProject)

			projects.POST("/:id/story-structure", aiLimit, handler.GenerateStructure)
			projects.GET("/:id/story-structure", handler.GetStructure)
			projects.PUT("/:id/story-structure", handler.UpdateStructure)

			projects.POST("/:id/character-development", aiLimit, handler.DevelopCharacters)
			projects.GET("/:id/character-development", handler.ProjectCharacters)
			projects.POST("/:id/characters/sync", handler.SyncProjectCharacters)

			projects.GET("/:id/fundamental-data", handler.GetFundamentalData)
			projects.PUT("/:id/fundamental-data", handler.PutFundamentalData)
			projects.DELETE("/:id/fundamental-data", handler.DeleteFundamentalData)
		}

		concepts := guarded.Group("/initial-concepts")
		{
			concepts.GET("", handler.ListConcepts)
			concepts.POST("", handler.CreateConcept)
			concepts.POST("/quality-score", aiLimit, handler.ConceptQualityScore)
			concepts.POST("/ai-autofill", aiLimit, handler.AutofillConcept)
			concepts.GET("/smart-defaults", handler.SmartDefaults)
			concepts.GET("/:id", handler.GetConcept)
			concepts.PUT("/:id", handler.UpdateConcept)
			concepts.PATCH("/:id", handler.UpdateConcept)
			concepts.DELETE("/:id", handler.DeleteConcept)
			concepts.POST("/:id/quality-score", aiLimit, handler.StoredConceptQualityScore)
		}

		stories := guarded.Group("/stories")
		{
			stories.GET("", handler.ListStories)
			stories.POST("/generate", aiLimit, handler.GenerateStory)
			stories.GET("/:id", handler.GetStory)
			stories.PATCH("/:id", handler.PatchStory)
			stories.DELETE("/:id", handler.DeleteStory)
			stories.POST("/:id/enhance", aiLimit, handler.EnhanceStory)
			stories.POST("/:id/complete", handler.CompleteStory)
			stories.GET("/:id/complete", handler.StoryCompletionStatus)
		}

		refs := guarded.Group("/character-references")
		{
			refs.GET("", handler.ListReferences)
			refs.GET("/:id", handler.GetReference)
			refs.PATCH("/:id", handler.PatchReference)
			refs.DELETE("/:id", handler.DeleteReference)
			refs.POST("/:id/regenerate", aiLimit, handler.RegenerateReference)
		}

		characters := guarded.Group("/characters/:id")
		{
			characters.POST("/generate-initial-image", aiLimit, handler.GenerateInitialImage)
			characters.POST("/generate-360-set", aiLimit, handler.Generate360Set)
			characters.POST("/generate-scene-image", aiLimit, handler.GenerateSceneImage)
			characters.GET("/images", handler.ListCharacterImages)
			characters.DELETE("/images/:imageId", handler.DeleteCharacterImage)
			characters.GET("/initial-image-prompt", handler.InitialImagePrompt)
			characters.POST("/sync", handler.SyncCharacter)
		}
	}

	cleanup := func() {
		limiter.Close()
		handler.Hub.CloseAll()
	}
	return r, cleanup
}
