package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	a := newTestAPI(t, false)

	rec, _ := a.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	assert.Contains(t, rec.Body.String(), `"llm":true`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestProjectRoutes(t *testing.T) {
	a := newTestAPI(t, false)

	rec, resp := a.do(t, http.MethodPost, "/v1/projects", map[string]interface{}{"name": "No Format"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	rec, resp = a.do(t, http.MethodPost, "/v1/projects", map[string]interface{}{
		"name":          "Night Shift",
		"movieFormat":   "short-film",
		"movieStyle":    "noir",
		"primaryGenres": []string{"drama", " "},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := dataMap(t, resp)
	id := project["id"].(string)
	assert.Equal(t, models.ProjectStatusDraft, project["status"])
	assert.Equal(t, []interface{}{"drama"}, project["primaryGenres"])

	rec, resp = a.do(t, http.MethodGet, "/v1/projects?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := dataMap(t, resp)
	assert.EqualValues(t, 1, page["totalDocs"])
	assert.EqualValues(t, 5, page["limit"])

	rec, resp = a.do(t, http.MethodPut, "/v1/projects/"+id, map[string]interface{}{"status": "in-progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in-progress", dataMap(t, resp)["status"])

	rec, _ = a.do(t, http.MethodGet, "/v1/projects?sort=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodDelete, "/v1/projects/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = a.do(t, http.MethodGet, "/v1/projects/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Project not found", resp.Error.Message)
}

func TestInvalidJSON(t *testing.T) {
	a := newTestAPI(t, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrorInvalidJSON)
}

func TestStoryFlow(t *testing.T) {
	a := newTestAPI(t, false)

	_, resp := a.do(t, http.MethodPost, "/v1/projects", map[string]interface{}{
		"name": "Glass Harbor", "movieFormat": "feature-film", "movieStyle": "cinematic-realism",
	})
	projectID := dataMap(t, resp)["id"].(string)

	rec, resp := a.do(t, http.MethodPost, "/v1/initial-concepts", map[string]interface{}{"project": projectID})
	require.Equal(t, http.StatusCreated, rec.Code)
	conceptID := dataMap(t, resp)["id"].(string)

	rec, _ = a.do(t, http.MethodPost, "/v1/initial-concepts", map[string]interface{}{"project": projectID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/stories/generate", map[string]interface{}{"projectId": projectID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = a.do(t, http.MethodPost, "/v1/stories/generate", map[string]interface{}{
		"projectId": projectID, "initialConceptId": conceptID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	story := dataMap(t, resp)
	storyID := story["id"].(string)
	assert.EqualValues(t, models.InitialStoryStep, story["currentStep"])

	rec, resp = a.do(t, http.MethodPost, "/v1/stories/generate", map[string]interface{}{
		"projectId": projectID, "initialConceptId": conceptID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storyID, dataMap(t, resp)["id"])

	rec, resp = a.do(t, http.MethodPost, "/v1/stories/"+storyID+"/complete", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, details["canContinue"])
	assert.EqualValues(t, models.InitialStoryStep, details["currentStep"])

	rec, resp = a.do(t, http.MethodGet, "/v1/stories/"+storyID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := dataMap(t, resp)
	assert.Equal(t, false, status["isReadyForCompletion"])
	assert.Equal(t, storyID, status["storyId"])
}

func TestConceptQualityScoreValidation(t *testing.T) {
	a := newTestAPI(t, false)

	rec, resp := a.do(t, http.MethodPost, "/v1/initial-concepts/quality-score", map[string]interface{}{
		"corePremise": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request data", resp.Error.Message)
}

func TestTaxonomyRoutes(t *testing.T) {
	a := newTestAPI(t, false)
	require.NoError(t, a.svcs.DB.Create(&models.Genre{Taxonomy: models.Taxonomy{Name: "Drama", Slug: "drama"}}).Error)

	rec, resp := a.do(t, http.MethodGet, "/v1/config/genres", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, dataMap(t, resp)["totalDocs"])

	rec, _ = a.do(t, http.MethodGet, "/v1/config/planets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/v1/movie-formats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCharacterRoutes(t *testing.T) {
	a := newTestAPI(t, false)

	rec, resp := a.do(t, http.MethodGet, "/v1/character-library/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = a.do(t, http.MethodPost, "/v1/projects/missing/character-development", map[string]interface{}{
		"characters": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/v1/character-references/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/characters/missing/generate-initial-image", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressSnapshot(t *testing.T) {
	a := newTestAPI(t, false)

	rec, resp := a.do(t, http.MethodGet, "/v1/progress/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorTaskNotFound, resp.Error.Code)

	tracker := a.svcs.Progress.CreateTracker("task-1")
	tracker.UpdateProgress(40, "halfway")

	rec, resp = a.do(t, http.MethodGet, "/v1/progress/task-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 40, dataMap(t, resp)["progress"])
}

func TestExportProject(t *testing.T) {
	a := newTestAPI(t, false)

	_, resp := a.do(t, http.MethodPost, "/v1/projects", map[string]interface{}{
		"name":        "Night Shift",
		"movieFormat": "short-film",
		"movieStyle":  "noir",
	})
	id := dataMap(t, resp)["id"].(string)

	rec, resp := a.do(t, http.MethodGet, "/v1/projects/"+id+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	export := dataMap(t, resp)
	assert.Equal(t, "json", export["format"])
	assert.Contains(t, export["content"], `"name": "Night Shift"`)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/"+id+"/export?download=true", nil)
	raw := httptest.NewRecorder()
	a.router.ServeHTTP(raw, req)
	require.Equal(t, http.StatusOK, raw.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", raw.Header().Get("Content-Type"))
	assert.Contains(t, raw.Header().Get("Content-Disposition"), `attachment; filename="night-shift_`)
	assert.True(t, strings.HasPrefix(raw.Body.String(), "# Night Shift"))

	rec, _ = a.do(t, http.MethodGet, "/v1/projects/"+id+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLLMUsage(t *testing.T) {
	a := newTestAPI(t, false)

	rec, resp := a.do(t, http.MethodGet, "/v1/settings/llm/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	usage := dataMap(t, resp)
	assert.Contains(t, usage, "todayRequests")
	assert.Contains(t, usage, "providerRequests")
}

func TestOptionalJSONBodies(t *testing.T) {
	a := newTestAPI(t, false)

	send := func(body string) *httptest.ResponseRecorder {
		// A reader of unknown length leaves ContentLength at -1, as with a chunked upload.
		req := httptest.NewRequest(http.MethodPost, "/v1/characters/missing/generate-initial-image", io.NopCloser(strings.NewReader(body)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, req)
		return rec
	}

	rec := send("")
	assert.Equal(t, http.StatusNotFound, rec.Code, "empty chunked body is accepted")

	rec = send("{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrorInvalidJSON)
}

func TestRegenerateReferenceKeepsErrorType(t *testing.T) {
	a := newTestAPI(t, false)

	project := &models.Project{Name: "Glass Harbor", MovieFormat: "feature-film", MovieStyle: "neo-noir", DurationUnit: 90}
	require.NoError(t, a.svcs.DB.Create(project).Error)
	ref := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, a.svcs.DB.Create(ref).Error)

	rec, resp := a.do(t, http.MethodPost, "/v1/character-references/"+ref.ID+"/regenerate", nil)
	assert.NotEqual(t, http.StatusBadGateway, rec.Code, "profile failure is not a library failure")
	assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
	assert.NotEqual(t, "CHARACTER_LIBRARY_ERROR", resp.Error.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/character-references/missing/regenerate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFundamentalDataRoutes(t *testing.T) {
	a := newTestAPI(t, false)
	project := &models.Project{Name: "Glass Harbor", MovieFormat: "feature-film", MovieStyle: "neo-noir", DurationUnit: 90}
	require.NoError(t, a.svcs.DB.Create(project).Error)
	path := "/v1/projects/" + project.ID + "/fundamental-data"

	rec, _ := a.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := map[string]interface{}{
		"visualStyle": map[string]interface{}{"colorPalette": map[string]string{"dominance": "cool"}},
		"setting":     map[string]string{"timePeriod": "1970s"},
	}
	rec, resp := a.do(t, http.MethodPut, path, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Glass Harbor", dataMap(t, resp)["projectName"])

	rec, _ = a.do(t, http.MethodPut, path, body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = a.do(t, http.MethodPut, path, map[string]interface{}{
		"visualStyle": map[string]interface{}{"colorPalette": map[string]string{"dominance": "neon"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	rec, resp = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1970s", dataMap(t, resp)["setting"].(map[string]interface{})["timePeriod"])

	rec, _ = a.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSmartDefaultsRoute(t *testing.T) {
	a := newTestAPI(t, false)
	require.NoError(t, a.svcs.DB.Create(&models.Genre{Taxonomy: models.Taxonomy{Name: "Drama", Slug: "drama"}}).Error)

	rec, resp := a.do(t, http.MethodGet, "/v1/initial-concepts/smart-defaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"drama"}, dataMap(t, resp)["primaryGenres"])
}

func TestAutofillRoutes(t *testing.T) {
	a := newTestAPI(t, false)

	// the model is down: the concept field fails, the run still reports
	rec, resp := a.do(t, http.MethodPost, "/v1/initial-concepts/ai-autofill", map[string]interface{}{
		"projectName": "Glass Harbor",
		"movieFormat": "feature-film",
		"formData":    map[string]interface{}{"primaryGenres": []string{"thriller"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	summary := dataMap(t, resp)["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["totalFailed"])

	rec, _ = a.do(t, http.MethodPost, "/v1/initial-concepts/ai-autofill", map[string]interface{}{"projectName": "Glass Harbor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/projects/core-elements-autofill", map[string]interface{}{"name": "Glass Harbor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/projects/core-elements-autofill", map[string]interface{}{
		"name": "Glass Harbor", "movieFormat": "feature-film", "movieStyle": "neo-noir", "durationUnit": 90,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCharacterSyncRoutes(t *testing.T) {
	a := newTestAPI(t, false)
	project := &models.Project{Name: "Glass Harbor", MovieFormat: "feature-film", MovieStyle: "neo-noir", DurationUnit: 90}
	require.NoError(t, a.svcs.DB.Create(project).Error)

	rec, resp := a.do(t, http.MethodPost, "/v1/projects/"+project.ID+"/characters/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, dataMap(t, resp)["syncedCharacters"])

	ref := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, a.svcs.DB.Create(ref).Error)

	rec, resp = a.do(t, http.MethodPost, "/v1/characters/"+ref.ID+"/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	character := dataMap(t, resp)["character"].(map[string]interface{})
	integration := character["libraryIntegration"].(map[string]interface{})
	assert.Equal(t, "created", integration["syncStatus"])
	assert.NotEmpty(t, integration["characterLibraryId"])

	rec, _ = a.do(t, http.MethodPost, "/v1/characters/missing/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/v1/projects/missing/characters/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
