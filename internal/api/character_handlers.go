// internal/api/character_handlers.go
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/services"
)

// ==================== character development ====================

type developCharactersRequest struct {
	Characters []string `json:"characters"`
	TaskID     string   `json:"taskId"`
}

// DevelopCharacters runs the batch and answers once it finishes. Clients that
// want live progress pick a taskId and open the progress websocket first.
func (h *Handler) DevelopCharacters(c *gin.Context) {
	var req developCharactersRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.Characters.Develop(c.Request.Context(), c.Param("id"), req.Characters, req.TaskID)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, result.Message)
}

func (h *Handler) ProjectCharacters(c *gin.Context) {
	characters, err := h.Characters.ProjectCharacters(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"characters": characters, "count": len(characters)})
}

// ==================== character references ====================

func (h *Handler) ListReferences(c *gin.Context) {
	page, err := h.Characters.ListReferences(c.Request.Context(), services.ReferenceListOptions{
		ListOptions: listOptions(c),
		ProjectID:   c.Query("project"),
	})
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.PaginatedSuccess(c, page)
}

func (h *Handler) GetReference(c *gin.Context) {
	ref, err := h.Characters.GetReference(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, ref)
}

func (h *Handler) PatchReference(c *gin.Context) {
	var patch services.ReferencePatch
	if !h.bindJSON(c, &patch) {
		return
	}
	ref, err := h.Characters.PatchReference(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, ref, "Character reference updated successfully")
}

func (h *Handler) DeleteReference(c *gin.Context) {
	if err := h.Characters.DeleteReference(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": c.Param("id")}, "Character reference deleted successfully")
}

func (h *Handler) RegenerateReference(c *gin.Context) {
	entry, err := h.Characters.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, entry, "Character regenerated successfully")
}

// ==================== character images ====================

type initialImageRequest struct {
	Prompt string `json:"prompt"`
}

// bindOptionalJSON accepts an empty body, including a chunked one.
func (h *Handler) bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidJSON, "Invalid JSON in request body", err.Error())
		return false
	}
	return true
}

func (h *Handler) GenerateInitialImage(c *gin.Context) {
	var req initialImageRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.Images.GenerateInitialImage(c.Request.Context(), c.Param("id"), req.Prompt)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, "Initial image generated")
}

func (h *Handler) Generate360Set(c *gin.Context) {
	var req services.Set360Request
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.Images.Generate360Set(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, "360 image set generated")
}

func (h *Handler) GenerateSceneImage(c *gin.Context) {
	var req services.SceneImageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.Images.GenerateSceneImage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, "Scene image generated")
}

func (h *Handler) ListCharacterImages(c *gin.Context) {
	images, err := h.Images.ListImages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, images)
}

func (h *Handler) DeleteCharacterImage(c *gin.Context) {
	if err := h.Images.DeleteImage(c.Request.Context(), c.Param("id"), c.Param("imageId")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": c.Param("imageId")}, "Image deleted successfully")
}

func (h *Handler) InitialImagePrompt(c *gin.Context) {
	prompt, err := h.Images.ReferencePrompt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"prompt": prompt})
}

func (h *Handler) CharacterLibraryHealth(c *gin.Context) {
	result := h.Images.LibraryHealth(c.Request.Context())
	status := http.StatusOK
	if !result.IsHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, &APIResponse{
		Success:   result.IsHealthy,
		Data:      result,
		Timestamp: result.Timestamp,
		RequestID: c.GetString(requestIDKey),
	})
}

// ==================== library sync ====================

func syncedCharacter(ref *models.CharacterReference) gin.H {
	return gin.H{
		"id":      ref.ID,
		"name":    ref.ProjectCharacterName,
		"project": ref.ProjectID,
		"libraryIntegration": gin.H{
			"characterLibraryId": ref.LibraryCharacterID,
			"libraryDbId":        ref.LibraryDBID,
			"syncStatus":         ref.GenerationMetadata.CharacterLibraryStatus,
			"lastSyncAt":         ref.GenerationMetadata.LastSyncAt,
		},
	}
}

func (h *Handler) SyncCharacter(c *gin.Context) {
	result, ref, err := h.Characters.SyncCharacter(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	body := gin.H{"result": result, "character": syncedCharacter(ref)}
	if !result.Success {
		h.Response.Error(c, http.StatusBadGateway, services.CharacterLibraryErrorCode, "Character sync failed", body)
		return
	}
	h.Response.Success(c, body, "Character synced with the character library")
}

func (h *Handler) SyncProjectCharacters(c *gin.Context) {
	result, err := h.Characters.SyncProjectCharacters(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	if !result.Success {
		h.Response.Error(c, http.StatusBadGateway, services.CharacterLibraryErrorCode, "Character sync failed", result)
		return
	}
	h.Response.Success(c, result, fmt.Sprintf("Synced %d character(s)", result.SyncedCharacters))
}
