// internal/services/generation_autofill.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
)

// ==================== Initial concept autofill ====================

// ConceptFormData is the initial concept form as the client holds it.
// List fields carry taxonomy slugs.
type ConceptFormData struct {
	Status         string   `json:"status"`
	PrimaryGenres  []string `json:"primaryGenres"`
	CorePremise    string   `json:"corePremise"`
	TargetAudience struct {
		Demographics      []string `json:"demographics"`
		Psychographics    string   `json:"psychographics"`
		CustomDescription string   `json:"customDescription"`
	} `json:"targetAudience"`
	ToneAndMood struct {
		Tones        []string `json:"tones"`
		Moods        []string `json:"moods"`
		EmotionalArc string   `json:"emotionalArc"`
	} `json:"toneAndMood"`
	Themes struct {
		CentralThemes   []string `json:"centralThemes"`
		MoralQuestions  string   `json:"moralQuestions"`
		MessageTakeaway string   `json:"messageTakeaway"`
	} `json:"themes"`
}

// ConceptAutofillRequest is the project context plus the current form.
type ConceptAutofillRequest struct {
	ProjectName        string          `json:"projectName"`
	ProjectDescription string          `json:"projectDescription"`
	MovieFormat        string          `json:"movieFormat"`
	MovieStyle         string          `json:"movieStyle"`
	DurationUnit       int             `json:"durationUnit"`
	Series             string          `json:"series,omitempty"`
	FormData           ConceptFormData `json:"formData"`
}

// field progress states
const (
	FieldGenerating = "generating"
	FieldCompleted  = "completed"
	FieldErrored    = "error"
)

// FieldProgress reports one field of a sequential autofill run.
type FieldProgress struct {
	FieldName  string `json:"fieldName"`
	FieldLabel string `json:"fieldLabel"`
	Status     string `json:"status"`
	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
}

type conceptFieldStep struct {
	name   string
	label  string
	ready  func(f *ConceptFormData) bool
	prompt func(req *ConceptAutofillRequest) string
	assign func(f *ConceptFormData, v string)
}

var conceptFieldSteps = []conceptFieldStep{
	{
		name:  "corePremise",
		label: "Core Premise",
		ready: func(f *ConceptFormData) bool { return len(f.PrimaryGenres) > 0 },
		prompt: func(req *ConceptAutofillRequest) string {
			var b strings.Builder
			b.WriteString("You are a master story architect crafting compelling narratives for award-winning films.\n\nProject Context:\n")
			fmt.Fprintf(&b, "- Project Name: %s\n", req.ProjectName)
			writeOptional(&b, "- Project Description: %s\n", req.ProjectDescription)
			fmt.Fprintf(&b, "- Movie Format: %s\n- Movie Style: %s\n", req.MovieFormat, req.MovieStyle)
			writeOptional(&b, "- Series: %s\n", req.Series)
			fmt.Fprintf(&b, "- Duration: %d minutes\n- Primary Genres: %s\n", req.DurationUnit, strings.Join(req.FormData.PrimaryGenres, ", "))
			b.WriteString(`
Create a compelling core premise (200-400 words) that establishes:
1. The central conflict and main character struggle
2. What drives the narrative forward
3. The stakes and why audiences should care
4. The unique hook that differentiates this story
5. The emotional core and the thematic question the story explores

Generate only the core premise content, no additional text or explanation.`)
			return b.String()
		},
		assign: func(f *ConceptFormData, v string) { f.CorePremise = v },
	},
	{
		name:  "targetAudience.psychographics",
		label: "Target Audience Psychographics",
		ready: func(f *ConceptFormData) bool {
			return len(f.PrimaryGenres) > 0 && strings.TrimSpace(f.CorePremise) != "" && len(f.TargetAudience.Demographics) > 0
		},
		prompt: func(req *ConceptAutofillRequest) string {
			f := req.FormData
			return fmt.Sprintf(`You are an audience psychology expert with deep expertise in film marketing.

Project Context:
- Project: %s
- Genres: %s
- Demographics: %s
- Core Premise: %s

Create a psychographic profile (150-250 words) covering core values, lifestyle and identity,
media habits, the emotional needs entertainment fulfills, aspirations and fears, and the
cultural touchstones that resonate with this audience.

Generate only the psychographics description, no additional text or explanation.`,
				req.ProjectName, strings.Join(f.PrimaryGenres, ", "), strings.Join(f.TargetAudience.Demographics, ", "), f.CorePremise)
		},
		assign: func(f *ConceptFormData, v string) { f.TargetAudience.Psychographics = v },
	},
	{
		name:  "toneAndMood.emotionalArc",
		label: "Emotional Arc",
		ready: func(f *ConceptFormData) bool {
			return len(f.PrimaryGenres) > 0 && strings.TrimSpace(f.CorePremise) != "" &&
				len(f.ToneAndMood.Tones) > 0 && len(f.ToneAndMood.Moods) > 0
		},
		prompt: func(req *ConceptAutofillRequest) string {
			f := req.FormData
			return fmt.Sprintf(`You are a master emotional architect for film.

Project Context:
- Project: %s
- Genres: %s
- Core Premise: %s
- Tones: %s
- Moods: %s

Design the emotional journey (200-350 words): the opening emotional state, how it escalates,
the key turning points, the cathartic moments, the emotional climax and the lasting impact.
Use the specified tones and moods.

Generate only the emotional arc description, no additional text or explanation.`,
				req.ProjectName, strings.Join(f.PrimaryGenres, ", "), f.CorePremise,
				strings.Join(f.ToneAndMood.Tones, ", "), strings.Join(f.ToneAndMood.Moods, ", "))
		},
		assign: func(f *ConceptFormData, v string) { f.ToneAndMood.EmotionalArc = v },
	},
}

var (
	fieldCodeBlock = regexp.MustCompile("(?s)```.*?```")
	fieldBold      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	fieldItalic    = regexp.MustCompile(`\*(.*?)\*`)
	fieldHeader    = regexp.MustCompile(`#{1,6}\s`)
	fieldBullet    = regexp.MustCompile(`(?m)^\s*[-*+]\s`)
	fieldNumbered  = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
)

// CleanFieldResponse strips markdown from a free text form field.
func CleanFieldResponse(s string) string {
	s = fieldCodeBlock.ReplaceAllString(s, "")
	s = fieldBold.ReplaceAllString(s, "$1")
	s = fieldItalic.ReplaceAllString(s, "$1")
	s = fieldHeader.ReplaceAllString(s, "")
	s = fieldBullet.ReplaceAllString(s, "")
	s = fieldNumbered.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// GenerateConceptFields generates each concept text field not in skip whose
// inputs are present, in order, feeding each result into the next prompt. A
// failed field is reported in the progress list; credit exhaustion aborts
// the run.
func (g *GenerationService) GenerateConceptFields(ctx context.Context, req ConceptAutofillRequest, skip map[string]bool) (map[string]string, []FieldProgress, error) {
	generated := map[string]string{}
	var progress []FieldProgress

	for _, step := range conceptFieldSteps {
		if skip[step.name] || !step.ready(&req.FormData) {
			continue
		}
		out, err := g.LLMService.CompleteString(ctx, step.prompt(&req), "", autofillTemperature, 1000)
		if err == nil {
			out = CleanFieldResponse(out)
			if out == "" {
				err = fmt.Errorf("Failed to generate %s: empty response", strings.ToLower(step.label))
			}
		}
		if err != nil {
			if classified := apperrors.ClassifyAIError(err, ""); apperrors.IsInsufficientCreditsError(classified) {
				return nil, nil, classified
			}
			progress = append(progress, FieldProgress{FieldName: step.name, FieldLabel: step.label, Status: FieldErrored, Error: err.Error()})
			continue
		}
		step.assign(&req.FormData, out)
		generated[step.name] = out
		progress = append(progress, FieldProgress{FieldName: step.name, FieldLabel: step.label, Status: FieldCompleted, Content: out})
	}
	return generated, progress, nil
}

// ==================== Core story elements ====================

// CoreElementsContext is the project form for core element autofill.
// List fields carry taxonomy slugs or names.
type CoreElementsContext struct {
	ProjectName    string   `json:"name"`
	MovieFormat    string   `json:"movieFormat"`
	MovieStyle     string   `json:"movieStyle"`
	Series         string   `json:"series,omitempty"`
	DurationUnit   int      `json:"durationUnit"`
	PrimaryGenres  []string `json:"primaryGenres"`
	CorePremise    string   `json:"corePremise"`
	TargetAudience []string `json:"targetAudience"`
	Tone           []string `json:"tone"`
	Mood           []string `json:"mood"`
}

type nameList struct {
	Items []string `json:"items"`
}

func (g *GenerationService) generateNames(ctx context.Context, prompt string) ([]string, error) {
	var out nameList
	if err := g.LLMService.CreateStructuredCompletion(ctx, prompt+"\n\nRespond as JSON: {\"items\": [\"...\"]}", "You are a film development executive.", &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Items))
	for _, n := range out.Items {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

func (g *GenerationService) GeneratePrimaryGenres(ctx context.Context, cc CoreElementsContext) ([]string, error) {
	return g.generateNames(ctx, fmt.Sprintf(`Choose 1-3 primary genres for this movie.
Project: %s
Format: %s, Style: %s, Duration: %d minutes%s
Use common genre names such as Drama, Thriller, Comedy, Horror, Science Fiction.`,
		cc.ProjectName, cc.MovieFormat, cc.MovieStyle, cc.DurationUnit, seriesSuffix(cc.Series)))
}

var (
	premiseBoldRun  = regexp.MustCompile(`\*\*.*?\*\*`)
	premiseHeaders  = regexp.MustCompile(`(?m)^#+\s*`)
	premiseRules    = regexp.MustCompile(`(?m)^-{3,}$`)
	premiseIntro    = regexp.MustCompile(`(?m)^(Excellent\.\s*Let's|Here is|Project.*?:).*$`)
	premiseBlank    = regexp.MustCompile(`(?m)^\s*\n`)
	sentenceBreaker = regexp.MustCompile(`[.!?]+`)
)

// CleanCorePremise drops preambles and keeps the longest real sentence.
func CleanCorePremise(response string) string {
	cleaned := premiseBoldRun.ReplaceAllString(response, "")
	cleaned = premiseHeaders.ReplaceAllString(cleaned, "")
	cleaned = premiseRules.ReplaceAllString(cleaned, "")
	cleaned = premiseIntro.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(premiseBlank.ReplaceAllString(cleaned, ""))

	longest := ""
	for _, s := range sentenceBreaker.Split(cleaned, -1) {
		if s = strings.TrimSpace(s); len(s) > 20 && len(s) > len(longest) {
			longest = s
		}
	}
	if longest == "" {
		return cleaned
	}
	return longest + "."
}

func (g *GenerationService) GenerateSimpleCorePremise(ctx context.Context, cc CoreElementsContext) (string, error) {
	out, err := g.LLMService.CompleteString(ctx, fmt.Sprintf(`Write a one sentence core premise for this movie.
Project: %s
Format: %s, Style: %s, Duration: %d minutes%s
Genres: %s
Generate only the premise, no additional text.`,
		cc.ProjectName, cc.MovieFormat, cc.MovieStyle, cc.DurationUnit, seriesSuffix(cc.Series), joinOr(cc.PrimaryGenres, "unspecified")),
		"", autofillTemperature, 300)
	if err != nil {
		return "", err
	}
	return CleanCorePremise(out), nil
}

func (g *GenerationService) GenerateTargetAudience(ctx context.Context, cc CoreElementsContext) ([]string, error) {
	return g.generateNames(ctx, fmt.Sprintf(`Choose 1-3 target audience demographics for this movie.
Project: %s
Genres: %s
Core Premise: %s
Format: %s, Duration: %d minutes
Use short labels such as "Young Adults (18-25)" or "Adults (26-40)".`,
		cc.ProjectName, joinOr(cc.PrimaryGenres, "unspecified"), firstNonEmpty(cc.CorePremise, "unspecified"), cc.MovieFormat, cc.DurationUnit))
}

func (g *GenerationService) GenerateTone(ctx context.Context, cc CoreElementsContext) ([]string, error) {
	return g.generateNames(ctx, fmt.Sprintf(`Choose 1-3 tones for this movie.
Project: %s
Genres: %s
Core Premise: %s
Target Audience: %s
Style: %s
Use single words or short phrases such as Dark, Whimsical, Suspenseful.`,
		cc.ProjectName, joinOr(cc.PrimaryGenres, "unspecified"), firstNonEmpty(cc.CorePremise, "unspecified"),
		joinOr(cc.TargetAudience, "general"), cc.MovieStyle))
}

func (g *GenerationService) GenerateMood(ctx context.Context, cc CoreElementsContext) ([]string, error) {
	return g.generateNames(ctx, fmt.Sprintf(`Choose 1-3 moods for this movie.
Project: %s
Genres: %s
Core Premise: %s
Target Audience: %s
Style: %s
Tones: %s
Use single words or short phrases such as Melancholic, Tense, Hopeful.`,
		cc.ProjectName, joinOr(cc.PrimaryGenres, "unspecified"), firstNonEmpty(cc.CorePremise, "unspecified"),
		joinOr(cc.TargetAudience, "general"), cc.MovieStyle, joinOr(cc.Tone, "unspecified")))
}

func seriesSuffix(series string) string {
	if series == "" {
		return ""
	}
	return "\nSeries: " + series
}
