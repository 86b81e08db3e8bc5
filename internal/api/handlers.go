// internal/api/handlers.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/novelmovie/novelmovie/internal/auth"
	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/services"
	"github.com/novelmovie/novelmovie/internal/utils"
	"gorm.io/gorm"
)

// Services are the dependencies the handlers call into.
type Services struct {
	DB          *gorm.DB
	LLM         *services.LLMService
	Projects    *services.ProjectService
	Concepts    *services.ConceptService
	Stories     *services.StoryService
	Structures  *services.StructureService
	Characters  *services.CharacterService
	Images      *services.ImageService
	Taxonomies  *services.TaxonomyService
	Users       *services.UserService
	Settings    *services.ConfigService
	Stats       *services.StatsService
	Exports     *services.ExportService
	Fundamental *services.FundamentalDataService
	Progress    *services.ProgressService
	Tokens      *auth.TokenConfig
}

// Handler serves the /v1 API.
type Handler struct {
	Services
	Response *ResponseHelper
	Hub      *ProgressHub
}

func NewHandler(svcs Services) *Handler {
	return &Handler{
		Services: svcs,
		Response: NewResponseHelper(),
		Hub:      NewProgressHub(svcs.Progress),
	}
}

// bindJSON decodes the body and answers 400 on malformed input.
func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidJSON, "Invalid JSON in request body", err.Error())
		return false
	}
	return true
}

// listOptions reads page, limit and sort.
func listOptions(c *gin.Context) services.ListOptions {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.ListOptions{Page: page, Limit: limit, Sort: c.Query("sort")}
}

// ==================== health ====================

func (h *Handler) Health(c *gin.Context) {
	database := "ok"
	if h.DB == nil || db.Ping(h.DB) != nil {
		database = "error"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"database":  database,
		"llm":       h.LLM.IsReady(),
		"llmState":  h.LLM.GetReadyState(),
		"timestamp": time.Now(),
	})
}

func (h *Handler) Metrics(c *gin.Context) {
	metrics := utils.GetMetricsCollector().GetMetrics()
	metrics["websocket"] = h.Hub.Status()
	h.Response.Success(c, metrics)
}

// ==================== projects ====================

func (h *Handler) ListProjects(c *gin.Context) {
	page, err := h.Projects.List(c.Request.Context(), services.ProjectListOptions{
		ListOptions: listOptions(c),
		Status:      c.Query("status"),
	})
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.PaginatedSuccess(c, page)
}

func (h *Handler) CreateProject(c *gin.Context) {
	var input services.ProjectInput
	if !h.bindJSON(c, &input) {
		return
	}
	project, err := h.Projects.Create(c.Request.Context(), input)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, project, "Project created successfully")
}

func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, project)
}

func (h *Handler) UpdateProject(c *gin.Context) {
	var update services.ProjectUpdate
	if !h.bindJSON(c, &update) {
		return
	}
	project, err := h.Projects.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, project, "Project updated successfully")
}

func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.Projects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": c.Param("id")}, "Project deleted successfully")
}

func (h *Handler) AutofillProject(c *gin.Context) {
	var pc services.ProjectContext
	if !h.bindJSON(c, &pc) {
		return
	}
	result, err := h.Projects.Autofill(c.Request.Context(), pc)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, result.Message)
}

func (h *Handler) CoreElementsAutofill(c *gin.Context) {
	var cc services.CoreElementsContext
	if !h.bindJSON(c, &cc) {
		return
	}
	result, err := h.Projects.CoreElementsAutofill(c.Request.Context(), cc)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, result.Message)
}

// ==================== fundamental data ====================

func (h *Handler) GetFundamentalData(c *gin.Context) {
	data, err := h.Fundamental.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, data)
}

func (h *Handler) PutFundamentalData(c *gin.Context) {
	var in services.FundamentalDataInput
	if !h.bindJSON(c, &in) {
		return
	}
	data, created, err := h.Fundamental.Upsert(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	if created {
		h.Response.Created(c, data, "Fundamental data created")
		return
	}
	h.Response.Success(c, data, "Fundamental data updated")
}

func (h *Handler) DeleteFundamentalData(c *gin.Context) {
	if err := h.Fundamental.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, nil, "Fundamental data deleted")
}

// ==================== initial concepts ====================

func (h *Handler) ListConcepts(c *gin.Context) {
	page, err := h.Concepts.List(c.Request.Context(), services.ConceptListOptions{
		ListOptions: listOptions(c),
		ProjectID:   c.Query("project"),
	})
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.PaginatedSuccess(c, page)
}

func (h *Handler) CreateConcept(c *gin.Context) {
	var input services.ConceptInput
	if !h.bindJSON(c, &input) {
		return
	}
	concept, err := h.Concepts.Create(c.Request.Context(), input)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, concept, "Initial concept created successfully")
}

func (h *Handler) GetConcept(c *gin.Context) {
	concept, err := h.Concepts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, concept)
}

func (h *Handler) UpdateConcept(c *gin.Context) {
	var update services.ConceptUpdate
	if !h.bindJSON(c, &update) {
		return
	}
	concept, err := h.Concepts.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, concept, "Initial concept updated successfully")
}

func (h *Handler) DeleteConcept(c *gin.Context) {
	if err := h.Concepts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": c.Param("id")}, "Initial concept deleted successfully")
}

func (h *Handler) ConceptQualityScore(c *gin.Context) {
	var req services.ConceptQualityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	assessment, err := h.Concepts.QualityScore(c.Request.Context(), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, assessment)
}

func (h *Handler) AutofillConcept(c *gin.Context) {
	var req services.ConceptAutofillRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.Concepts.Autofill(c.Request.Context(), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, result.Message)
}

func (h *Handler) SmartDefaults(c *gin.Context) {
	defaults, err := h.Taxonomies.SmartDefaults(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, defaults)
}

func (h *Handler) StoredConceptQualityScore(c *gin.Context) {
	assessment, err := h.Concepts.ScoreStored(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, assessment)
}

// ==================== stories ====================

type generateStoryRequest struct {
	ProjectID        string `json:"projectId"`
	InitialConceptID string `json:"initialConceptId"`
}

func (h *Handler) GenerateStory(c *gin.Context) {
	var req generateStoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	story, created, err := h.Stories.Generate(c.Request.Context(), req.ProjectID, req.InitialConceptID)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	if !created {
		h.Response.Success(c, story, "Story already exists for this project")
		return
	}
	h.Response.Created(c, story, "Story generated successfully")
}

func (h *Handler) ListStories(c *gin.Context) {
	page, err := h.Stories.List(c.Request.Context(), services.StoryListOptions{
		ListOptions: listOptions(c),
		ProjectID:   c.Query("project"),
	})
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.PaginatedSuccess(c, page)
}

func (h *Handler) GetStory(c *gin.Context) {
	story, err := h.Stories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, story)
}

func (h *Handler) PatchStory(c *gin.Context) {
	var patch services.StoryPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	story, err := h.Stories.Patch(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, story, "Story updated successfully")
}

func (h *Handler) DeleteStory(c *gin.Context) {
	if err := h.Stories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": c.Param("id")}, "Story deleted successfully")
}

func (h *Handler) EnhanceStory(c *gin.Context) {
	story, err := h.Stories.Enhance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, story, "Story enhanced successfully")
}

func (h *Handler) CompleteStory(c *gin.Context) {
	result, err := h.Stories.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, result.Message)
}

func (h *Handler) StoryCompletionStatus(c *gin.Context) {
	status, err := h.Stories.CompletionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, status)
}

// ==================== story structure ====================

func (h *Handler) GenerateStructure(c *gin.Context) {
	force := c.Query("force") == "true"
	structure, created, err := h.Structures.Generate(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	if !created {
		h.Response.Success(c, structure, "Story structure already exists")
		return
	}
	h.Response.Created(c, structure, "Story structure generated successfully")
}

func (h *Handler) GetStructure(c *gin.Context) {
	structure, err := h.Structures.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, structure)
}

func (h *Handler) UpdateStructure(c *gin.Context) {
	var update services.StructureUpdate
	if !h.bindJSON(c, &update) {
		return
	}
	structure, err := h.Structures.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, structure, "Story structure updated successfully")
}

// ==================== taxonomies ====================

func (h *Handler) listTaxonomy(c *gin.Context, kind models.TaxonomyKind) {
	rows, count, err := h.Taxonomies.List(c.Request.Context(), kind)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"docs": rows, "totalDocs": count})
}

func (h *Handler) ListCollection(c *gin.Context) {
	h.listTaxonomy(c, models.TaxonomyKind(c.Param("collection")))
}

func (h *Handler) ListMovieFormats(c *gin.Context) {
	h.listTaxonomy(c, models.TaxonomyMovieFormats)
}

// ==================== users ====================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var input services.UserInput
	if !h.bindJSON(c, &input) {
		return
	}
	user, err := h.Users.Create(c.Request.Context(), input)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, user, "User created successfully")
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result, "Login successful")
}

func (h *Handler) CurrentUser(c *gin.Context) {
	userID, _ := GetUserFromContext(c)
	user, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, user)
}

// ==================== settings ====================

func (h *Handler) GetLLMSettings(c *gin.Context) {
	h.Response.Success(c, h.Settings.GetLLMSettings())
}

func (h *Handler) UpdateLLMSettings(c *gin.Context) {
	var update services.LLMSettingsUpdate
	if !h.bindJSON(c, &update) {
		return
	}
	userID, _ := GetUserFromContext(c)
	settings, err := h.Settings.UpdateLLMSettings(update, userID)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, settings, "LLM settings updated")
}

func (h *Handler) LLMSettingsHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	h.Response.Success(c, h.Settings.GetChangeHistory(limit))
}

func (h *Handler) LLMUsage(c *gin.Context) {
	h.Response.Success(c, h.Stats.GetUsageStats())
}

// ==================== export ====================

// ExportProject renders the project package. With download=true the raw
// document is sent as an attachment instead of the JSON envelope.
func (h *Handler) ExportProject(c *gin.Context) {
	result, err := h.Exports.ExportProject(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", services.ExportFormatMarkdown))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	if download, _ := strconv.ParseBool(c.Query("download")); download {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
		c.Data(http.StatusOK, result.ContentType(), []byte(result.Content))
		return
	}
	h.Response.Success(c, result)
}
