// internal/services/generation_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/novelmovie/novelmovie/internal/charlib"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
)

// GenerationService owns the prompts. Every method talks to the LLM once
// (autofill fans out) and leaves fallbacks to the caller unless noted.
type GenerationService struct {
	LLMService *LLMService
}

func NewGenerationService(llmService *LLMService) *GenerationService {
	return &GenerationService{LLMService: llmService}
}

// ==================== Story ====================

// ProjectStoryData is the flattened project used by the story prompts.
type ProjectStoryData struct {
	ProjectName      string   `json:"projectName"`
	ProjectTitle     string   `json:"projectTitle,omitempty"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	LongDescription  string   `json:"longDescription,omitempty"`
	MovieFormat      string   `json:"movieFormat"`
	MovieStyle       string   `json:"movieStyle"`
	DurationUnit     int      `json:"durationUnit"`
	PrimaryGenres    []string `json:"primaryGenres"`
	CorePremise      string   `json:"corePremise"`
	TargetAudience   []string `json:"targetAudience"`
	Tone             []string `json:"tone"`
}

// ExtractProjectStoryData fills blanks with defaults. Concept fields win over
// the project's own lists when the concept has them.
func ExtractProjectStoryData(project *models.Project, concept *models.InitialConcept) ProjectStoryData {
	data := ProjectStoryData{
		ProjectName:      firstNonEmpty(project.Name, "Untitled Project"),
		ProjectTitle:     project.ProjectTitle,
		ShortDescription: project.ShortDescription,
		LongDescription:  project.LongDescription,
		MovieFormat:      firstNonEmpty(project.MovieFormat, "Unknown Format"),
		MovieStyle:       firstNonEmpty(project.MovieStyle, "Unknown Style"),
		DurationUnit:     project.DurationUnit,
		PrimaryGenres:    project.PrimaryGenres,
		CorePremise:      project.CorePremise,
		TargetAudience:   project.TargetAudience,
		Tone:             project.Tone,
	}
	if data.DurationUnit <= 0 {
		data.DurationUnit = 90
	}

	if concept != nil {
		if len(concept.PrimaryGenres) > 0 {
			data.PrimaryGenres = concept.PrimaryGenres
		}
		if len(concept.TargetAudience) > 0 {
			data.TargetAudience = concept.TargetAudience
		}
		if len(concept.Tone) > 0 {
			data.Tone = concept.Tone
		}
		if concept.CorePremise != "" {
			data.CorePremise = concept.CorePremise
		}
	}

	data.CorePremise = firstNonEmpty(data.CorePremise, "A story waiting to be told")
	return data
}

// StoryValidation reports whether a project can seed a story.
type StoryValidation struct {
	IsValid       bool     `json:"isValid"`
	MissingFields []string `json:"missingFields"`
	Warnings      []string `json:"warnings"`
}

func ValidateProjectForStory(project *models.Project) StoryValidation {
	result := StoryValidation{MissingFields: []string{}, Warnings: []string{}}

	if strings.TrimSpace(project.Name) == "" {
		result.MissingFields = append(result.MissingFields, "Project Name")
	}
	if strings.TrimSpace(project.MovieFormat) == "" {
		result.MissingFields = append(result.MissingFields, "Movie Format")
	}
	if strings.TrimSpace(project.MovieStyle) == "" {
		result.MissingFields = append(result.MissingFields, "Movie Style")
	}

	if len(project.PrimaryGenres) == 0 {
		result.Warnings = append(result.Warnings, "Primary Genres not specified - will use generic approach")
	}
	if strings.TrimSpace(project.CorePremise) == "" {
		result.Warnings = append(result.Warnings, "Core Premise not specified - will generate generic premise")
	}
	if len(project.TargetAudience) == 0 {
		result.Warnings = append(result.Warnings, "Target Audience not specified - will target general audience")
	}
	if len(project.Tone) == 0 {
		result.Warnings = append(result.Warnings, "Tone not specified - will use balanced tone")
	}

	result.IsValid = len(result.MissingFields) == 0
	return result
}

// StoryDraft is a freshly generated story.
type StoryDraft struct {
	Content      string
	Notes        string
	Model        string
	UsedFallback bool
}

const (
	storyTemperature = 0.8
	storyMaxTokens   = 2000
	storyPromptName  = "initial-story-generation"
)

// InitialStoryMetrics are the scores a new story starts with.
func InitialStoryMetrics() models.QualityMetrics {
	return models.QualityMetrics{
		OverallQuality:      models.IntPtr(6),
		StructureScore:      models.IntPtr(6),
		CharacterDepth:      models.IntPtr(5),
		CoherenceScore:      models.IntPtr(7),
		ConflictTension:     models.IntPtr(5),
		DialogueQuality:     models.IntPtr(5),
		GenreAlignment:      models.IntPtr(7),
		AudienceEngagement:  models.IntPtr(5),
		VisualStorytelling:  models.IntPtr(4),
		ProductionReadiness: models.IntPtr(3),
	}
}

func (g *GenerationService) GenerateStory(ctx context.Context, data ProjectStoryData) (*StoryDraft, error) {
	var b strings.Builder
	b.WriteString("You are an experienced screenwriter developing the first full draft of a story for a movie project.\n\n")
	b.WriteString("Project Context:\n")
	fmt.Fprintf(&b, "- Project Name: %s\n", data.ProjectName)
	writeOptional(&b, "- Title: %s\n", data.ProjectTitle)
	fmt.Fprintf(&b, "- Movie Format: %s\n", data.MovieFormat)
	fmt.Fprintf(&b, "- Movie Style: %s\n", data.MovieStyle)
	fmt.Fprintf(&b, "- Duration: %d minutes\n", data.DurationUnit)
	writeOptional(&b, "- Short Description: %s\n", data.ShortDescription)
	writeOptional(&b, "- Long Description: %s\n", data.LongDescription)
	b.WriteString("\nCore Story Elements:\n")
	fmt.Fprintf(&b, "- Genres: %s\n", joinOr(data.PrimaryGenres, "Unknown"))
	fmt.Fprintf(&b, "- Core Premise: %s\n", data.CorePremise)
	fmt.Fprintf(&b, "- Target Audience: %s\n", joinOr(data.TargetAudience, "General audience"))
	fmt.Fprintf(&b, "- Tone: %s\n", joinOr(data.Tone, "Balanced"))
	b.WriteString(`
Write a complete story outline with a three-act structure (Act I - Setup, Act II - Confrontation,
Act III - Resolution), character arcs for the protagonist, antagonist and supporting cast,
key visual elements and the thematic core. Pace the story for the runtime.
Use markdown headings in bold. Return only the story.`)

	content, err := g.LLMService.CompleteString(ctx, b.String(), "", storyTemperature, storyMaxTokens)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("Failed to generate story: empty response")
	}

	return &StoryDraft{
		Content: content,
		Notes:   "Generated from project and concept data",
		Model:   g.LLMService.GetDefaultModel(),
	}, nil
}

// FallbackStory builds a template story when the LLM is unavailable.
func FallbackStory(data ProjectStoryData) *StoryDraft {
	genres := joinOr(data.PrimaryGenres, "")
	tones := joinOr(data.Tone, "")
	audience := joinOr(data.TargetAudience, "")

	var b strings.Builder
	fmt.Fprintf(&b, "**PROJECT:** %s\n", firstNonEmpty(data.ProjectTitle, data.ProjectName))
	fmt.Fprintf(&b, "**FORMAT:** %s (%d minutes)\n", data.MovieFormat, data.DurationUnit)
	fmt.Fprintf(&b, "**STYLE:** %s\n", data.MovieStyle)
	fmt.Fprintf(&b, "**GENRE:** %s\n", firstNonEmpty(genres, "Unknown"))
	fmt.Fprintf(&b, "**TONE:** %s\n", firstNonEmpty(tones, "Balanced"))
	fmt.Fprintf(&b, "**TARGET AUDIENCE:** %s\n\n", firstNonEmpty(audience, "General audience"))
	writeOptional(&b, "**BRIEF:** %s\n\n", data.ShortDescription)
	writeOptional(&b, "**SYNOPSIS:** %s\n\n", data.LongDescription)

	b.WriteString("**STORY OUTLINE:**\n\n")
	fmt.Fprintf(&b, "**Act I - Setup**\n%s\n\n", data.CorePremise)
	fmt.Fprintf(&b, "Our protagonist finds themselves in a world where the ordinary rules no longer apply. The initial conflict emerges from their desire to maintain normalcy while being thrust into extraordinary circumstances. The %s visual approach enhances the %s atmosphere.\n\n",
		data.MovieStyle, firstNonEmpty(tones, "balanced"))
	fmt.Fprintf(&b, "**Act II - Confrontation**\nAs the stakes rise, our protagonist must confront not only external challenges but also internal doubts and fears. The central conflict intensifies, forcing difficult choices that will define their character. The %s elements drive the narrative tension forward.\n\n",
		firstNonEmpty(genres, "genre"))
	b.WriteString("**Act III - Resolution**\nThrough courage, growth, and perhaps unexpected allies, our protagonist faces the final challenge. The resolution brings not just victory, but transformation - both for the character and their world.\n\n")
	b.WriteString("**CHARACTER ARCS:**\n- Protagonist: Begins reluctant, grows into a confident leader\n- Supporting characters: Each represents different aspects of the central theme\n- Antagonist: Embodies the opposite of what the protagonist must become\n\n")
	fmt.Fprintf(&b, "**VISUAL ELEMENTS:**\nThe story unfolds through carefully crafted scenes that balance dialogue with action, ensuring each moment serves both character development and plot advancement. The %s style creates a distinctive visual identity.\n\n", data.MovieStyle)
	fmt.Fprintf(&b, "**THEMATIC RESONANCE:**\nThis narrative explores themes of growth, courage, and the power of choice, delivering a message that resonates with the %s audience while maintaining the %s tone throughout.\n\n",
		firstNonEmpty(audience, "target"), firstNonEmpty(tones, "balanced"))
	fmt.Fprintf(&b, "**FORMAT CONSIDERATIONS:**\nAs a %s with %d minutes, the pacing is carefully calibrated to maximize impact within the time constraints while delivering a complete narrative arc.\n\n",
		data.MovieFormat, data.DurationUnit)
	b.WriteString("*This is an initial story draft that will be enhanced through multiple iterations to improve character depth, dialogue quality, visual storytelling, and overall narrative coherence.*")

	return &StoryDraft{
		Content:      b.String(),
		Notes:        "Generated using fallback template because the AI service was unavailable.",
		Model:        "fallback-template",
		UsedFallback: true,
	}
}

// EnhanceStory rewrites the story with one focus area.
func (g *GenerationService) EnhanceStory(ctx context.Context, content string, focus EnhancementFocus, metrics models.QualityMetrics) (string, error) {
	score, ok := metrics.Get(focus.TargetMetric)
	scoreText := "unscored"
	if ok {
		scoreText = fmt.Sprintf("%d/10", score)
	}

	prompt := fmt.Sprintf(`You are a script doctor improving a movie story one aspect at a time.

Focus Area: %s
Goal: %s
Current %s score: %s

Rewrite the story below so it improves on the focus area while keeping the plot, characters and
formatting intact. Return only the full revised story.

STORY:
%s`, focus.Name, focus.Description, focus.TargetMetric, scoreText, content)

	out, err := g.LLMService.CompleteString(ctx, prompt, "", 0.7, 4000)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("Failed to generate enhancement: empty response")
	}
	return out, nil
}

// ==================== Project autofill ====================

// ProjectContext is the input for project field autofill.
type ProjectContext struct {
	ProjectName              string   `json:"name"`
	MovieFormat              string   `json:"movieFormat"`
	MovieStyle               string   `json:"movieStyle"`
	Series                   string   `json:"series,omitempty"`
	DurationUnit             int      `json:"durationUnit"`
	ExistingTitle            string   `json:"projectTitle,omitempty"`
	ExistingShortDescription string   `json:"shortDescription,omitempty"`
	ExistingLongDescription  string   `json:"longDescription,omitempty"`
	PrimaryGenres            []string `json:"primaryGenres,omitempty"`
	CorePremise              string   `json:"corePremise,omitempty"`
	TargetAudience           []string `json:"targetAudience,omitempty"`
	Tone                     []string `json:"tone,omitempty"`
}

// GeneratedFields holds only what was generated.
type GeneratedFields struct {
	ProjectTitle     string `json:"projectTitle,omitempty"`
	ShortDescription string `json:"shortDescription,omitempty"`
	LongDescription  string `json:"longDescription,omitempty"`
}

// Count returns the number of non-empty fields.
func (f GeneratedFields) Count() int {
	n := 0
	for _, v := range []string{f.ProjectTitle, f.ShortDescription, f.LongDescription} {
		if v != "" {
			n++
		}
	}
	return n
}

const autofillTemperature = 0.7

var (
	boldWrapped   = regexp.MustCompile(`^\*\*(.*)\*\*$`)
	boldInline    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	doubleQuoted  = regexp.MustCompile(`^"(.*)"$`)
	singleQuoted  = regexp.MustCompile(`^'(.*)'$`)
	backtickQuote = regexp.MustCompile("^`(.*)`$")
)

// CleanAIResponse strips markdown bold, wrapping quotes and backticks.
func CleanAIResponse(content string) string {
	s := strings.TrimSpace(content)
	s = boldWrapped.ReplaceAllString(s, "$1")
	s = boldInline.ReplaceAllString(s, "$1")
	s = doubleQuoted.ReplaceAllString(s, "$1")
	s = singleQuoted.ReplaceAllString(s, "$1")
	s = backtickQuote.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

func (pc ProjectContext) describe(b *strings.Builder, includeTitle bool) {
	b.WriteString("Project Context:\n")
	fmt.Fprintf(b, "- Project Name: %s\n", pc.ProjectName)
	if includeTitle {
		writeOptional(b, "- Title: %s\n", pc.ExistingTitle)
	}
	fmt.Fprintf(b, "- Movie Format: %s\n", pc.MovieFormat)
	fmt.Fprintf(b, "- Movie Style: %s\n", pc.MovieStyle)
	writeOptional(b, "- Series: %s\n", pc.Series)
	fmt.Fprintf(b, "- Duration: %d minutes\n", pc.DurationUnit)
	writeOptional(b, "- Short Description: %s\n", pc.ExistingShortDescription)
	writeOptional(b, "- Long Description: %s\n", pc.ExistingLongDescription)

	b.WriteString("\nCore Story Elements:\n")
	if len(pc.PrimaryGenres) > 0 {
		fmt.Fprintf(b, "- Genres: %s\n", strings.Join(pc.PrimaryGenres, ", "))
	}
	writeOptional(b, "- Core Premise: %s\n", pc.CorePremise)
	if len(pc.TargetAudience) > 0 {
		fmt.Fprintf(b, "- Target Audience: %s\n", strings.Join(pc.TargetAudience, ", "))
	}
	if len(pc.Tone) > 0 {
		fmt.Fprintf(b, "- Tone: %s\n", strings.Join(pc.Tone, ", "))
	}
	b.WriteString("\n")
}

func (g *GenerationService) GenerateProjectTitle(ctx context.Context, pc ProjectContext) (string, error) {
	var b strings.Builder
	b.WriteString("You are a creative writer specializing in compelling movie titles. Generate an engaging, memorable title for a movie project.\n\n")
	pc.describe(&b, true)
	b.WriteString(`Guidelines:
- Capture the essence and tone of the project
- Consider the movie format and style
- Keep it concise but impactful (typically 1-5 words)
- Avoid overly generic or cliche titles
`)
	writeOptional(&b, "- Consider this is part of a series: %s\n", pc.Series)
	b.WriteString("\nGenerate only the title as plain text, no markdown formatting, asterisks, quotes, or additional text or explanation.")
	return g.autofillField(ctx, b.String())
}

func (g *GenerationService) GenerateShortDescription(ctx context.Context, pc ProjectContext) (string, error) {
	var b strings.Builder
	b.WriteString("You are a marketing content editor writing a concise, engaging short description for posters, streaming platforms and marketing materials.\n\n")
	pc.describe(&b, true)
	b.WriteString(`Guidelines:
- 1-3 sentences, roughly 50-120 words
- Lead with the hook that makes audiences want to watch
- Include genre and style naturally
- Create intrigue without spoiling key plot points
`)
	writeOptional(&b, "- Consider this is part of a series: %s\n", pc.Series)
	b.WriteString("\nGenerate only the short description, no additional text or explanation.")
	return g.autofillField(ctx, b.String())
}

func (g *GenerationService) GenerateLongDescription(ctx context.Context, pc ProjectContext) (string, error) {
	var b strings.Builder
	b.WriteString("You are an experienced screenwriter and story developer. Write a detailed description that can serve as the foundation for a screenplay.\n\n")
	pc.describe(&b, true)
	fmt.Fprintf(&b, `Guidelines:
- The depth of a professional treatment (typically 250-500 words)
- Characters with clear goals and compelling flaws
- The central conflict, key story beats and a satisfying conclusion
- Setting and atmosphere in vivid, cinematic terms
- Story complexity that fits %d minutes
`, pc.DurationUnit)
	if pc.Series != "" {
		fmt.Fprintf(&b, "- Consider how this fits within the broader series: %s\n", pc.Series)
	}
	b.WriteString("\nGenerate only the long description, no additional text or explanation.")
	return g.autofillField(ctx, b.String())
}

func (g *GenerationService) autofillField(ctx context.Context, prompt string) (string, error) {
	out, err := g.LLMService.CompleteString(ctx, prompt, "", autofillTemperature, 0)
	if err != nil {
		return "", err
	}
	return CleanAIResponse(out), nil
}

// GenerateMissingFields fills the empty optional fields concurrently.
// Credit exhaustion aborts the whole call; other failures only drop that field.
func (g *GenerationService) GenerateMissingFields(ctx context.Context, pc ProjectContext) (GeneratedFields, error) {
	var (
		out GeneratedFields
		mu  sync.Mutex
	)

	type job struct {
		name string
		run  func(context.Context, ProjectContext) (string, error)
		set  func(string)
	}
	var jobs []job
	if pc.ExistingTitle == "" {
		jobs = append(jobs, job{"title", g.GenerateProjectTitle, func(v string) { out.ProjectTitle = v }})
	}
	if pc.ExistingShortDescription == "" {
		jobs = append(jobs, job{"short description", g.GenerateShortDescription, func(v string) { out.ShortDescription = v }})
	}
	if pc.ExistingLongDescription == "" {
		jobs = append(jobs, job{"long description", g.GenerateLongDescription, func(v string) { out.LongDescription = v }})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		eg.Go(func() error {
			value, err := j.run(egCtx, pc)
			if err != nil {
				if apperrors.IsInsufficientCreditsError(apperrors.ClassifyAIError(err, "")) {
					return err
				}
				utils.GetLogger().Warn("autofill field failed", map[string]interface{}{
					"field": j.name,
					"error": err.Error(),
				})
				return nil
			}
			if value == "" {
				return nil
			}
			mu.Lock()
			j.set(value)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return GeneratedFields{}, err
	}
	return out, nil
}

// ==================== Concept quality ====================

// ConceptQualityRequest is the form state scored by AssessConceptQuality.
type ConceptQualityRequest struct {
	ProjectName    string   `json:"projectName"`
	MovieFormat    string   `json:"movieFormat"`
	MovieStyle     string   `json:"movieStyle"`
	Series         string   `json:"series,omitempty"`
	DurationUnit   int      `json:"durationUnit"`
	PrimaryGenres  []string `json:"primaryGenres"`
	CorePremise    string   `json:"corePremise"`
	TargetAudience []string `json:"targetAudience"`
	Tone           []string `json:"tone"`
	Themes         []string `json:"themes,omitempty"`
}

// Validate returns the list of field problems.
func (r ConceptQualityRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.ProjectName) == "" {
		errs = append(errs, FieldError{"projectName", "Project name is required"})
	}
	if strings.TrimSpace(r.MovieFormat) == "" {
		errs = append(errs, FieldError{"movieFormat", "Movie format is required"})
	}
	if strings.TrimSpace(r.MovieStyle) == "" {
		errs = append(errs, FieldError{"movieStyle", "Movie style is required"})
	}
	if len(r.PrimaryGenres) == 0 {
		errs = append(errs, FieldError{"primaryGenres", "At least one genre is required"})
	}
	if len(strings.TrimSpace(r.CorePremise)) < 10 {
		errs = append(errs, FieldError{"corePremise", "Core premise must be at least 10 characters"})
	}
	if len(r.TargetAudience) == 0 {
		errs = append(errs, FieldError{"targetAudience", "At least one demographic is required"})
	}
	if len(r.Tone) == 0 {
		errs = append(errs, FieldError{"tone", "At least one tone is required"})
	}
	return errs
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// QualityAssessment scores a concept from 0 to 100.
type QualityAssessment struct {
	QualityScore    int      `json:"qualityScore"`
	Recommendations []string `json:"recommendations"`
	Source          string   `json:"source,omitempty"`
}

func (g *GenerationService) AssessConceptQuality(ctx context.Context, req ConceptQualityRequest) (*QualityAssessment, error) {
	prompt := fmt.Sprintf(`Assess how ready this movie concept is for story development.

Project: %s
Format: %s (%d minutes)
Style: %s
Series: %s
Genres: %s
Core Premise: %s
Target Audience: %s
Tone: %s
Themes: %s

Score the concept from 0 to 100 and give up to five concrete recommendations.
Respond as JSON: {"qualityScore": number, "recommendations": [string]}`,
		req.ProjectName, req.MovieFormat, req.DurationUnit, req.MovieStyle, firstNonEmpty(req.Series, "none"),
		strings.Join(req.PrimaryGenres, ", "), req.CorePremise, strings.Join(req.TargetAudience, ", "),
		strings.Join(req.Tone, ", "), joinOr(req.Themes, "not specified"))

	var result QualityAssessment
	if err := g.LLMService.CreateStructuredCompletion(ctx, prompt, "You are a development executive reviewing movie concepts.", &result); err != nil {
		return nil, err
	}
	result.QualityScore = clamp(result.QualityScore, 0, 100)
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	result.Source = "ai"
	return &result, nil
}

// HeuristicConceptQuality scores a concept from field completeness.
func HeuristicConceptQuality(req ConceptQualityRequest) *QualityAssessment {
	score := 40
	var recs []string

	premise := strings.TrimSpace(req.CorePremise)
	switch words := len(strings.Fields(premise)); {
	case words >= 40:
		score += 25
	case words >= 15:
		score += 15
		recs = append(recs, "Expand the core premise with the protagonist's goal and the central obstacle.")
	default:
		score += 5
		recs = append(recs, "The core premise is very short. Describe who wants what and what stands in the way.")
	}

	switch n := len(req.PrimaryGenres); {
	case n == 1 || n == 2:
		score += 10
	case n > 3:
		score += 5
		recs = append(recs, "Too many genres dilute the concept. Pick one or two primary genres.")
	default:
		score += 8
	}

	if len(req.TargetAudience) > 0 {
		score += 10
	}
	if len(req.Tone) > 0 {
		score += 10
	}
	if len(req.Themes) > 0 {
		score += 5
	} else {
		recs = append(recs, "Add central themes to give the story a clear thematic spine.")
	}

	if recs == nil {
		recs = []string{"The concept is well rounded. Proceed to story generation."}
	}
	return &QualityAssessment{QualityScore: clamp(score, 0, 100), Recommendations: recs, Source: "heuristic"}
}

// ==================== Story structure ====================

// StructureAnalysis is the LLM breakdown of a story.
type StructureAnalysis struct {
	StructureType   string                `json:"structureType"`
	AdaptiveActs    []models.AdaptiveAct  `json:"adaptiveActs"`
	StoryBeats      []models.StoryBeat    `json:"storyBeats"`
	CharacterArcs   []models.CharacterArc `json:"characterArcs"`
	Subplots        []models.Subplot      `json:"subplots"`
	QualityScore    int                   `json:"qualityScore"`
	GenerationNotes string                `json:"generationNotes"`
}

func (g *GenerationService) AnalyzeStoryStructure(ctx context.Context, content string, project *models.Project, constraints DurationConstraints) (*StructureAnalysis, error) {
	prompt := fmt.Sprintf(`Break the following story into a production ready structure.

Project: %s
Format: %s
Style: %s
Duration: %d minutes
Genres: %s
Target Audience: %s

Structure: %s (%s)
Limits: at most %d story beats, %d main characters, %d subplots, %d locations.
Pacing: about %.2f beats per minute.
Guidelines:
- %s

Return JSON with keys structureType, adaptiveActs [{actNumber, name, description, duration (minutes), keyEvents, purpose}],
storyBeats [{beat, timing (minute), description, characters, emotionalTone}],
characterArcs [{character, startState, endState, transformation, keyMoments}],
subplots [{name, description, resolution, charactersInvolved}], qualityScore (0-100), generationNotes.

STORY:
%s`,
		project.Name, project.MovieFormat, project.MovieStyle, constraints.TargetDuration,
		joinOr(project.PrimaryGenres, "unspecified"), joinOr(project.TargetAudience, "general"),
		constraints.StructureType, constraints.StructureDescription,
		constraints.MaxStoryBeats, constraints.MaxCharacters, constraints.MaxSubplots, constraints.MaxLocations,
		constraints.BeatsPerMinute, strings.Join(constraints.PacingGuidelines, "\n- "), content)

	var result StructureAnalysis
	if err := g.LLMService.CreateStructuredCompletion(ctx, prompt, "You are a story analyst for film and television.", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ==================== Characters ====================

// CharacterContext is the input for character development.
type CharacterContext struct {
	StoryContent   string
	ProjectName    string
	MovieFormat    string
	MovieStyle     string
	DurationUnit   int
	Genres         []string
	TargetAudience []string
	CharacterArcs  []models.CharacterArc
	StoryBeats     []models.StoryBeat
}

type developCharactersResult struct {
	Characters []charlib.CharacterProfile `json:"characters"`
}

// DevelopCharacters asks for full profiles of every main character.
func (g *GenerationService) DevelopCharacters(ctx context.Context, cc CharacterContext) ([]charlib.CharacterProfile, error) {
	var arcs strings.Builder
	for _, arc := range cc.CharacterArcs {
		fmt.Fprintf(&arcs, "- %s: %s -> %s (%s)\n", arc.Character, arc.StartState, arc.EndState, arc.Transformation)
	}
	var beats strings.Builder
	for _, beat := range cc.StoryBeats {
		fmt.Fprintf(&beats, "- [%d] %s: %s\n", beat.Timing, beat.Beat, beat.Description)
	}

	prompt := fmt.Sprintf(`Develop the main characters of this movie in depth.

Project: %s
Format: %s, Style: %s, Duration: %d minutes
Genres: %s
Target Audience: %s

Character Arcs:
%s
Story Beats:
%s
For each character return name, role (protagonist|antagonist|supporting|minor), archetype,
characterDevelopment {biography, personality, motivations, backstory, psychology {motivation, fears, desires, flaws}},
characterArc {startState, transformation, endState},
physicalDescription {description, age, height, eyeColor, hairColor, clothing},
dialogueVoice {voiceDescription, style, patterns, vocabulary},
relationships [{characterName, relationshipType, relationshipDynamic}],
generationMetadata {qualityScore, completeness}.
Respond as JSON: {"characters": [...]}

STORY:
%s`,
		cc.ProjectName, firstNonEmpty(cc.MovieFormat, "Short Film"), firstNonEmpty(cc.MovieStyle, "Cinematic"), cc.DurationUnit,
		joinOr(cc.Genres, "unspecified"), joinOr(cc.TargetAudience, "general"),
		firstNonEmpty(arcs.String(), "none yet\n"), firstNonEmpty(beats.String(), "none yet\n"), cc.StoryContent)

	var result developCharactersResult
	if err := g.LLMService.CreateStructuredCompletion(ctx, prompt, "You are a character development specialist for film.", &result); err != nil {
		return nil, err
	}
	return result.Characters, nil
}

// PickCharacterProfile returns the profile named name, else the first one
// renamed, else false.
func PickCharacterProfile(profiles []charlib.CharacterProfile, name string) (charlib.CharacterProfile, bool) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	if len(profiles) > 0 {
		p := profiles[0]
		p.Name = name
		return p, true
	}
	return charlib.CharacterProfile{}, false
}

// ==================== helpers ====================

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

func writeOptional(b *strings.Builder, format, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Fprintf(b, format, value)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
