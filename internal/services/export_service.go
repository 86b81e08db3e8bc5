// internal/services/export_service.go
package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
	"gorm.io/gorm"
)

// export formats
const (
	ExportFormatJSON     = "json"
	ExportFormatMarkdown = "markdown"
	ExportFormatText     = "txt"
)

var supportedExportFormats = []string{ExportFormatJSON, ExportFormatMarkdown, ExportFormatText}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// ExportService renders a project's pre-production package as one document.
type ExportService struct {
	DB *gorm.DB
	// ExportDir receives a copy of every export when set.
	ExportDir string
}

func NewExportService(db *gorm.DB, exportDir string) *ExportService {
	return &ExportService{DB: db, ExportDir: exportDir}
}

// ProjectBundle is everything stored for a project.
type ProjectBundle struct {
	Project    *models.Project             `json:"project"`
	Concept    *models.InitialConcept      `json:"initialConcept,omitempty"`
	Story      *models.Story               `json:"story,omitempty"`
	Structure  *models.StoryStructure      `json:"storyStructure,omitempty"`
	Characters []models.CharacterReference `json:"characters"`
}

// ExportStats summarizes the bundle.
type ExportStats struct {
	StoryWords     int  `json:"storyWords"`
	Beats          int  `json:"beats"`
	Characters     int  `json:"characters"`
	HasConcept     bool `json:"hasConcept"`
	HasStory       bool `json:"hasStory"`
	HasStructure   bool `json:"hasStructure"`
	StructureSecs  int  `json:"structureSeconds"`
	OverallQuality *int `json:"overallQuality,omitempty"`
}

// ExportResult is one rendered export.
type ExportResult struct {
	ProjectID   string      `json:"projectId"`
	Title       string      `json:"title"`
	Format      string      `json:"format"`
	Content     string      `json:"content"`
	FileName    string      `json:"fileName"`
	FilePath    string      `json:"filePath,omitempty"`
	FileSize    int64       `json:"fileSize"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Stats       ExportStats `json:"stats"`
}

// ContentType is the MIME type of Content.
func (r *ExportResult) ContentType() string {
	switch r.Format {
	case ExportFormatJSON:
		return "application/json; charset=utf-8"
	case ExportFormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ExportProject loads the project bundle and renders it in format.
func (s *ExportService) ExportProject(ctx context.Context, projectID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatMarkdown
	}
	if format == "md" {
		format = ExportFormatMarkdown
	}
	if !slices.Contains(supportedExportFormats, format) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unsupported export format %q, supported: %s", format, strings.Join(supportedExportFormats, ", ")), nil)
	}

	bundle, err := s.LoadBundle(ctx, projectID)
	if err != nil {
		return nil, err
	}

	stats := analyzeBundle(bundle)
	var content string
	switch format {
	case ExportFormatJSON:
		content, err = formatBundleAsJSON(bundle, stats)
	case ExportFormatMarkdown:
		content = formatBundleAsMarkdown(bundle, stats)
	default:
		content = formatBundleAsText(bundle, stats)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to render export", err)
	}

	now := time.Now().UTC()
	result := &ExportResult{
		ProjectID:   bundle.Project.ID,
		Title:       bundleTitle(bundle),
		Format:      format,
		Content:     content,
		FileName:    exportFileName(bundle.Project, format, now),
		FileSize:    int64(len(content)),
		GeneratedAt: now,
		Stats:       stats,
	}

	if s.ExportDir != "" {
		path, size, err := s.saveExport(result)
		if err != nil {
			return nil, apperrors.NewProcessingError("failed to save export", err)
		}
		result.FilePath = path
		result.FileSize = size
	}

	utils.GetLogger().Named("export").Info("project exported", map[string]interface{}{
		"project_id": result.ProjectID,
		"format":     format,
		"size":       result.FileSize,
	})
	return result, nil
}

// LoadBundle reads the project and its optional documents.
func (s *ExportService) LoadBundle(ctx context.Context, projectID string) (*ProjectBundle, error) {
	conn := s.DB.WithContext(ctx)

	var project models.Project
	if err := conn.First(&project, "id = ?", projectID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Project not found", err)
		}
		return nil, err
	}
	bundle := &ProjectBundle{Project: &project}

	var concept models.InitialConcept
	if found, err := firstOptional(conn, &concept, projectID); err != nil {
		return nil, err
	} else if found {
		bundle.Concept = &concept
	}

	var story models.Story
	if found, err := firstOptional(conn, &story, projectID); err != nil {
		return nil, err
	} else if found {
		bundle.Story = &story
	}

	var structure models.StoryStructure
	if found, err := firstOptional(conn, &structure, projectID); err != nil {
		return nil, err
	} else if found {
		bundle.Structure = &structure
	}

	if err := conn.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&bundle.Characters).Error; err != nil {
		return nil, err
	}
	return bundle, nil
}

func firstOptional(conn *gorm.DB, dest interface{}, projectID string) (bool, error) {
	err := conn.Where("project_id = ?", projectID).First(dest).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func analyzeBundle(b *ProjectBundle) ExportStats {
	stats := ExportStats{
		Characters:   len(b.Characters),
		HasConcept:   b.Concept != nil,
		HasStory:     b.Story != nil,
		HasStructure: b.Structure != nil,
	}
	if b.Story != nil {
		stats.StoryWords = len(strings.Fields(b.Story.CurrentContent))
		stats.OverallQuality = b.Story.QualityMetrics.OverallQuality
	}
	if b.Structure != nil {
		stats.Beats = len(b.Structure.StoryBeats)
		stats.StructureSecs = b.Structure.ActStructure.TotalDuration()
	}
	return stats
}

func bundleTitle(b *ProjectBundle) string {
	if b.Project.ProjectTitle != "" {
		return b.Project.ProjectTitle
	}
	return b.Project.Name
}

func exportFileName(p *models.Project, format string, at time.Time) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(p.Name), "-"), "-")
	if slug == "" {
		slug = p.ID
	}
	ext := format
	if format == ExportFormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("%s_%s.%s", slug, at.Format("20060102_150405"), ext)
}

func (s *ExportService) saveExport(result *ExportResult) (string, int64, error) {
	if err := os.MkdirAll(s.ExportDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.ExportDir, result.FileName)
	if err := os.WriteFile(path, []byte(result.Content), 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write export file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}
	return path, info.Size(), nil
}

func formatBundleAsJSON(b *ProjectBundle, stats ExportStats) (string, error) {
	doc := struct {
		*ProjectBundle
		Stats ExportStats `json:"stats"`
	}{b, stats}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatBundleAsMarkdown(b *ProjectBundle, stats ExportStats) string {
	var sb strings.Builder
	p := b.Project

	fmt.Fprintf(&sb, "# %s\n\n", bundleTitle(b))
	if p.ShortDescription != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", p.ShortDescription)
	}

	sb.WriteString("## Project\n\n")
	fmt.Fprintf(&sb, "- **Format:** %s\n", p.MovieFormat)
	fmt.Fprintf(&sb, "- **Style:** %s\n", p.MovieStyle)
	if p.Series != "" {
		fmt.Fprintf(&sb, "- **Series:** %s\n", p.Series)
	}
	fmt.Fprintf(&sb, "- **Duration:** %d min\n", p.DurationUnit)
	writeListLine(&sb, "- **Genres:** ", p.PrimaryGenres)
	writeListLine(&sb, "- **Audience:** ", p.TargetAudience)
	writeListLine(&sb, "- **Tone:** ", p.Tone)
	fmt.Fprintf(&sb, "- **Status:** %s\n\n", p.Status)
	if p.CorePremise != "" {
		fmt.Fprintf(&sb, "**Premise.** %s\n\n", p.CorePremise)
	}
	if p.LongDescription != "" {
		fmt.Fprintf(&sb, "%s\n\n", p.LongDescription)
	}

	if c := b.Concept; c != nil {
		sb.WriteString("## Initial Concept\n\n")
		if c.Title != "" {
			fmt.Fprintf(&sb, "**%s** (%s)\n\n", c.Title, c.Status)
		}
		if c.CorePremise != "" {
			fmt.Fprintf(&sb, "%s\n\n", c.CorePremise)
		}
		writeListLine(&sb, "- **Themes:** ", c.Themes)
		writeListLine(&sb, "- **Genres:** ", c.PrimaryGenres)
		sb.WriteString("\n")
	}

	if st := b.Story; st != nil {
		sb.WriteString("## Story\n\n")
		fmt.Fprintf(&sb, "Status: %s, step %d, %d words", st.Status, st.CurrentStep, stats.StoryWords)
		if q := st.QualityMetrics.OverallQuality; q != nil {
			fmt.Fprintf(&sb, ", overall quality %d/100", *q)
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(st.CurrentContent))
		sb.WriteString("\n\n")
	}

	if s := b.Structure; s != nil {
		sb.WriteString("## Structure\n\n")
		fmt.Fprintf(&sb, "Type: %s, total %s\n\n", s.NarrativeStructureType, formatSeconds(stats.StructureSecs))
		acts := s.ActStructure
		sb.WriteString("### Act 1\n\n")
		writeField(&sb, "Setup", acts.Act1.Setup)
		writeField(&sb, "Inciting incident", acts.Act1.IncitingIncident)
		writeField(&sb, "Plot point 1", acts.Act1.PlotPoint1)
		sb.WriteString("\n### Act 2\n\n")
		writeField(&sb, "Confrontation", acts.Act2.Confrontation)
		writeField(&sb, "Midpoint", acts.Act2.Midpoint)
		writeField(&sb, "Plot point 2", acts.Act2.PlotPoint2)
		sb.WriteString("\n### Act 3\n\n")
		writeField(&sb, "Climax", acts.Act3.Climax)
		writeField(&sb, "Falling action", acts.Act3.FallingAction)
		writeField(&sb, "Resolution", acts.Act3.Resolution)

		if len(s.StoryBeats) > 0 {
			sb.WriteString("\n### Beats\n\n| Time | Beat | Tone |\n|---|---|---|\n")
			for _, beat := range s.StoryBeats {
				fmt.Fprintf(&sb, "| %s | %s | %s |\n", formatSeconds(beat.Timing), escapeCell(beat.Beat), escapeCell(beat.EmotionalTone))
			}
		}
		if len(s.CharacterArcs) > 0 {
			sb.WriteString("\n### Character arcs\n\n")
			for _, arc := range s.CharacterArcs {
				fmt.Fprintf(&sb, "- **%s:** %s -> %s\n", arc.Character, arc.StartState, arc.EndState)
			}
		}
		sb.WriteString("\n")
	}

	if len(b.Characters) > 0 {
		sb.WriteString("## Characters\n\n")
		for _, ch := range b.Characters {
			fmt.Fprintf(&sb, "### %s\n\n", ch.ProjectCharacterName)
			fmt.Fprintf(&sb, "- **Role:** %s\n", ch.CharacterRole)
			fmt.Fprintf(&sb, "- **Status:** %s\n", ch.GenerationStatus)
			if ch.DialogueVoice != "" {
				fmt.Fprintf(&sb, "- **Voice:** %s\n", ch.DialogueVoice)
			}
			sb.WriteString("\n")
		}
	}

	fmt.Fprintf(&sb, "---\n\n_Exported %s_\n", time.Now().UTC().Format(time.RFC1123))
	return sb.String()
}

func formatBundleAsText(b *ProjectBundle, stats ExportStats) string {
	var sb strings.Builder
	title := bundleTitle(b)
	fmt.Fprintf(&sb, "%s\n%s\n\n", title, strings.Repeat("=", len([]rune(title))))
	fmt.Fprintf(&sb, "Format: %s / Style: %s / %d min\n", b.Project.MovieFormat, b.Project.MovieStyle, b.Project.DurationUnit)
	if len(b.Project.PrimaryGenres) > 0 {
		fmt.Fprintf(&sb, "Genres: %s\n", strings.Join(b.Project.PrimaryGenres, ", "))
	}
	if b.Project.CorePremise != "" {
		fmt.Fprintf(&sb, "Premise: %s\n", b.Project.CorePremise)
	}
	if b.Story != nil {
		fmt.Fprintf(&sb, "\nSTORY (%d words)\n\n%s\n", stats.StoryWords, strings.TrimSpace(b.Story.CurrentContent))
	}
	if b.Structure != nil {
		sb.WriteString("\nBEATS\n\n")
		for _, beat := range b.Structure.StoryBeats {
			fmt.Fprintf(&sb, "%8s  %s\n", formatSeconds(beat.Timing), beat.Beat)
		}
	}
	if len(b.Characters) > 0 {
		sb.WriteString("\nCHARACTERS\n\n")
		for _, ch := range b.Characters {
			fmt.Fprintf(&sb, "- %s (%s)\n", ch.ProjectCharacterName, ch.CharacterRole)
		}
	}
	return sb.String()
}

func writeListLine(sb *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	sb.WriteString(label)
	sb.WriteString(strings.Join(values, ", "))
	sb.WriteString("\n")
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "- **%s:** %s\n", label, value)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatSeconds(total int) string {
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
