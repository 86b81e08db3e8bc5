package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/novelmovie/novelmovie/internal/charlib"
	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/llm/llmtest"
	"github.com/novelmovie/novelmovie/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenTest()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func newTestGeneration(provider *llmtest.Provider) *GenerationService {
	return NewGenerationService(NewLLMServiceWithProvider("fake", provider))
}

func newTestLocks(t *testing.T) *LockManager {
	t.Helper()
	locks := NewLockManager()
	t.Cleanup(locks.Close)
	return locks
}

func createProject(t *testing.T, conn *gorm.DB, mutate ...func(*models.Project)) *models.Project {
	t.Helper()
	project := &models.Project{
		Name:           "Glass Harbor",
		MovieFormat:    "feature-film",
		MovieStyle:     "neo-noir",
		DurationUnit:   90,
		PrimaryGenres:  []string{"thriller"},
		CorePremise:    "A harbor pilot discovers the fog hides a smuggling ring run by her brother.",
		TargetAudience: []string{"adults"},
		Tone:           []string{"tense"},
	}
	for _, m := range mutate {
		m(project)
	}
	require.NoError(t, conn.Create(project).Error)
	return project
}

func createConcept(t *testing.T, conn *gorm.DB, project *models.Project) *models.InitialConcept {
	t.Helper()
	concept := &models.InitialConcept{
		ProjectID:     project.ID,
		ProjectName:   project.Name,
		Status:        models.ConceptStatusReady,
		PrimaryGenres: []string{"thriller", "drama"},
		CorePremise:   project.CorePremise,
	}
	require.NoError(t, conn.Create(concept).Error)
	return concept
}

func createStory(t *testing.T, conn *gorm.DB, project *models.Project, content string) *models.Story {
	t.Helper()
	story := &models.Story{
		ProjectID:      project.ID,
		ProjectName:    project.Name,
		CurrentContent: content,
		CurrentStep:    models.InitialStoryStep,
		Status:         models.StoryStatusInProgress,
		QualityMetrics: InitialStoryMetrics(),
	}
	require.NoError(t, conn.Create(story).Error)
	return story
}

// newFakeLibrary serves handler as the character library. Retries are off so
// failures surface on the first 4xx.
func newFakeLibrary(t *testing.T, handler http.HandlerFunc) *charlib.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return charlib.NewClient(charlib.Config{BaseURL: server.URL, Timeout: 5 * time.Second, Retries: 1})
}
