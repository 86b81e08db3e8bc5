package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelmovie/novelmovie/internal/charlib"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/llm/llmtest"
	"github.com/novelmovie/novelmovie/internal/models"
)

const developedCharacters = `{"characters": [
	{"name": "Mara Vell", "role": "protagonist", "archetype": "Reluctant Hero",
	 "characterDevelopment": {"personality": "Stubborn, observant"},
	 "physicalDescription": {"description": "Weathered harbor pilot", "age": 38},
	 "dialogueVoice": {"voiceDescription": "Low and clipped"},
	 "generationMetadata": {"qualityScore": 92}},
	{"name": "Tomas Vell", "role": "antagonist",
	 "dialogueVoice": {"voiceDescription": "Warm, persuasive"}}
]}`

// libraryHandler accepts every character except the names in reject.
func libraryHandler(t *testing.T, created *atomic.Int32, reject ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/characters/novel-movie" {
			http.NotFound(w, r)
			return
		}
		var req charlib.NovelMovieCharacterRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		for _, name := range reject {
			if req.CharacterData.Name == name {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"duplicate"}`))
				return
			}
		}
		n := created.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":     true,
			"characterId": "lib-" + req.CharacterData.Name,
			"id":          "db-" + string(rune('0'+n)),
		})
	}
}

func newTestCharacters(t *testing.T, provider *llmtest.Provider, handler http.HandlerFunc) *CharacterService {
	t.Helper()
	media := newTestMedia(t, nil)
	return NewCharacterService(media.DB, newTestGeneration(provider), newFakeLibrary(t, handler),
		NewProgressService(), media, newTestLocks(t))
}

func TestDevelopCharacters(t *testing.T) {
	var created atomic.Int32
	svc := newTestCharacters(t, llmtest.NewProvider(developedCharacters), libraryHandler(t, &created, "Ghost"))
	ctx := context.Background()
	project := createProject(t, svc.DB)

	res, err := svc.Develop(ctx, project.ID, []string{"Mara Vell", " ", "Nadia", "Ghost"}, "task-1")
	require.NoError(t, err)

	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, DevelopmentSummary{Total: 3, Successful: 2, Failed: 1}, res.Summary)
	assert.Equal(t, "Generated 2 characters successfully", res.Message)
	require.Len(t, res.Characters, 3)

	mara := res.Characters[0]
	assert.True(t, mara.Success)
	assert.Equal(t, "lib-Mara Vell", mara.LibraryCharacterID)
	assert.Equal(t, models.GenerationComplete, mara.Status)

	// unknown names borrow the first profile under their own name
	assert.Equal(t, "lib-Nadia", res.Characters[1].LibraryCharacterID)

	ghost := res.Characters[2]
	assert.False(t, ghost.Success)
	assert.Equal(t, models.GenerationFailed, ghost.Status)
	assert.Contains(t, ghost.Error, "400")

	var refs []models.CharacterReference
	require.NoError(t, svc.DB.Order("project_character_name").Find(&refs).Error)
	require.Len(t, refs, 2)
	ref := refs[0]
	assert.Equal(t, "Mara Vell", ref.ProjectCharacterName)
	assert.Equal(t, models.RoleSupporting, ref.CharacterRole)
	assert.Equal(t, "Low and clipped", ref.DialogueVoice)
	assert.Equal(t, 92, ref.GenerationMetadata.QualityScore)
	assert.Equal(t, 90, ref.GenerationMetadata.Completeness)
	assert.Equal(t, "created", ref.GenerationMetadata.CharacterLibraryStatus)
	assert.Equal(t, "LLM DevelopCharacters", ref.GenerationMetadata.GenerationMethod)
	assert.NotEmpty(t, ref.LibraryDBID)

	tracker, ok := svc.Progress.GetTracker("task-1")
	require.True(t, ok)
	snap := tracker.Snapshot()
	assert.Equal(t, ProgressCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)

	chars, err := svc.ProjectCharacters(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, chars, 2)
	names := []interface{}{chars[0]["name"], chars[1]["name"]}
	assert.ElementsMatch(t, []interface{}{"Mara Vell", "Nadia"}, names)
	for _, c := range chars {
		assert.NotEmpty(t, c["referenceId"])
		assert.Equal(t, "complete", c["status"])
	}
}

func TestDevelopCharactersValidation(t *testing.T) {
	var created atomic.Int32
	svc := newTestCharacters(t, llmtest.NewProvider(developedCharacters), libraryHandler(t, &created))
	ctx := context.Background()

	_, err := svc.Develop(ctx, "whatever", []string{" "}, "")
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.Develop(ctx, "missing", []string{"Mara"}, "")
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.Zero(t, created.Load())
}

func TestDevelopCharactersEmptyModelAnswer(t *testing.T) {
	var created atomic.Int32
	svc := newTestCharacters(t, llmtest.NewProvider(`{"characters": []}`), libraryHandler(t, &created))
	project := createProject(t, svc.DB)

	res, err := svc.Develop(context.Background(), project.ID, []string{"Ines"}, "")
	require.NoError(t, err)
	require.True(t, res.Characters[0].Success)

	ref, err := svc.GetReference(context.Background(), res.Characters[0].CharacterReferenceID)
	require.NoError(t, err)
	profile, ok := charlib.DecodeProfile(ref.GenerationMetadata.BAMLData)
	require.True(t, ok)
	assert.Equal(t, "Ines is a character in Glass Harbor", profile.CharacterDevelopment.Biography)
	assert.Equal(t, 75, ref.GenerationMetadata.QualityScore)
}

func TestReferencePatchAndDelete(t *testing.T) {
	var created atomic.Int32
	svc := newTestCharacters(t, llmtest.NewProvider(developedCharacters), libraryHandler(t, &created))
	ctx := context.Background()
	project := createProject(t, svc.DB)

	ref := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, svc.DB.Create(ref).Error)

	role := models.RoleProtagonist
	patched, err := svc.PatchReference(ctx, ref.ID, ReferencePatch{CharacterRole: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleProtagonist, patched.CharacterRole)

	bad := "villain"
	_, err = svc.PatchReference(ctx, ref.ID, ReferencePatch{CharacterRole: &bad})
	assert.True(t, apperrors.IsValidationError(err))

	entry, err := svc.Regenerate(ctx, ref.ID)
	require.NoError(t, err)
	assert.True(t, entry.Success)
	assert.Equal(t, "lib-Mara Vell", entry.LibraryCharacterID)

	again, err := svc.GetReference(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleProtagonist, again.CharacterRole)
	assert.Equal(t, models.GenerationComplete, again.GenerationStatus)

	media, err := svc.Media.Save(ctx, "mara", "mara.png", pngBytes, "image/png", "")
	require.NoError(t, err)
	require.NoError(t, svc.DB.Create(&models.CharacterImageMetadata{
		CharacterReferenceID: ref.ID,
		MediaID:              &media.ID,
		Kind:                 models.ImageKindReference,
	}).Error)

	require.NoError(t, svc.DeleteReference(ctx, ref.ID))
	assert.False(t, svc.Media.Storage.Exists(media.Filename))
	_, err = svc.GetReference(ctx, ref.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestRegenerateErrorTypes(t *testing.T) {
	var created atomic.Int32
	ctx := context.Background()

	rejecting := newTestCharacters(t, llmtest.NewProvider(developedCharacters), libraryHandler(t, &created, "Mara Vell"))
	project := createProject(t, rejecting.DB)
	ref := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, rejecting.DB.Create(ref).Error)

	_, err := rejecting.Regenerate(ctx, ref.ID)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeExternalService, appErr.Type)
	assert.Equal(t, CharacterLibraryErrorCode, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
	entry, ok := appErr.Details.(CharacterDevelopmentEntry)
	require.True(t, ok)
	assert.Equal(t, models.GenerationFailed, entry.Status)

	llmDown := newTestCharacters(t, llmtest.Failing(errors.New("OpenRouter API error (503): down")), libraryHandler(t, &created))
	project = createProject(t, llmDown.DB)
	ref = &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, llmDown.DB.Create(ref).Error)

	_, err = llmDown.Regenerate(ctx, ref.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
	assert.Zero(t, created.Load(), "library never called")
}

// syncLibrary is a healthy library that records every call.
type syncLibrary struct {
	mu      sync.Mutex
	calls   []string
	healthy bool
	bulk    []string
}

func (l *syncLibrary) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.calls = append(l.calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/api/health":
			status := "ok"
			if !l.healthy {
				status = "degraded"
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/v1/characters/bulk/novel-movie":
			var req charlib.BulkNovelMovieRequest
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
				return
			}
			out := make([]map[string]string, len(req.Characters))
			for i, c := range req.Characters {
				l.bulk = append(l.bulk, c.CharacterData.Name)
				out[i] = map[string]string{"id": "bulk-" + c.CharacterData.Name, "characterId": "lib-" + c.CharacterData.Name}
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "characters": out})
		case r.URL.Path == "/api/v1/characters/novel-movie":
			var req charlib.NovelMovieCharacterRequest
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "new-" + req.CharacterData.Name, "characterId": "lib-" + req.CharacterData.Name})
		default:
			http.NotFound(w, r)
		}
	}
}

func (l *syncLibrary) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestSyncProjectCharacters(t *testing.T) {
	library := &syncLibrary{healthy: true}
	svc := newTestCharacters(t, llmtest.NewProvider(), library.handler(t))
	ctx := context.Background()
	project := createProject(t, svc.DB)

	linked := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell", LibraryDBID: "db-old", LibraryCharacterID: "lib-old"}
	unlinked := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Tomas Vell"}
	require.NoError(t, svc.DB.Create(linked).Error)
	require.NoError(t, svc.DB.Create(unlinked).Error)

	result, err := svc.SyncProjectCharacters(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SyncedCharacters)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"Tomas Vell"}, library.bulk)
	assert.Contains(t, library.recorded(), "DELETE /api/v1/characters/db-old")

	var got models.CharacterReference
	require.NoError(t, svc.DB.First(&got, "id = ?", unlinked.ID).Error)
	assert.Equal(t, "bulk-Tomas Vell", got.LibraryDBID)
	assert.Equal(t, "created", got.GenerationMetadata.CharacterLibraryStatus)
	assert.NotNil(t, got.GenerationMetadata.LastSyncAt)

	require.NoError(t, svc.DB.First(&got, "id = ?", linked.ID).Error)
	assert.Equal(t, "new-Mara Vell", got.LibraryDBID)
	assert.Equal(t, "lib-Mara Vell", got.LibraryCharacterID)
	assert.Equal(t, "synced", got.GenerationMetadata.CharacterLibraryStatus)
}

func TestSyncProjectCharactersEmptyAndMissing(t *testing.T) {
	library := &syncLibrary{healthy: true}
	svc := newTestCharacters(t, llmtest.NewProvider(), library.handler(t))
	project := createProject(t, svc.DB)

	result, err := svc.SyncProjectCharacters(context.Background(), project.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.SyncedCharacters)
	assert.Empty(t, library.recorded())

	_, err = svc.SyncProjectCharacters(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestSyncCharacterUnhealthyLibrary(t *testing.T) {
	library := &syncLibrary{healthy: false}
	svc := newTestCharacters(t, llmtest.NewProvider(), library.handler(t))
	project := createProject(t, svc.DB)
	ref := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, svc.DB.Create(ref).Error)

	result, _, err := svc.SyncCharacter(context.Background(), ref.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Character Library unavailable")
	assert.Equal(t, []string{"GET /api/health"}, library.recorded())
}

func TestSyncCharacterCreatesUnlinked(t *testing.T) {
	library := &syncLibrary{healthy: true}
	svc := newTestCharacters(t, llmtest.NewProvider(), library.handler(t))
	project := createProject(t, svc.DB)
	ref := &models.CharacterReference{ProjectID: project.ID, ProjectCharacterName: "Mara Vell"}
	require.NoError(t, svc.DB.Create(ref).Error)

	result, synced, err := svc.SyncCharacter(context.Background(), ref.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedCharacters)
	assert.Equal(t, "new-Mara Vell", synced.LibraryDBID)
	assert.Equal(t, "created", synced.GenerationMetadata.CharacterLibraryStatus)
	assert.Equal(t, []string{"GET /api/health", "POST /api/v1/characters/novel-movie"}, library.recorded())

	_, _, err = svc.SyncCharacter(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}
