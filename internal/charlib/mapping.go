// internal/charlib/mapping.go
package charlib

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RichText is the lexical document format the library stores prose in.
type RichText struct {
	Root richRoot `json:"root"`
}

type richRoot struct {
	Children  []richParagraph `json:"children"`
	Direction string          `json:"direction"`
	Format    string          `json:"format"`
	Indent    int             `json:"indent"`
	Type      string          `json:"type"`
	Version   int             `json:"version"`
}

type richParagraph struct {
	Children  []richText `json:"children"`
	Direction string     `json:"direction"`
	Format    string     `json:"format"`
	Indent    int        `json:"indent"`
	Type      string     `json:"type"`
	Version   int        `json:"version"`
}

type richText struct {
	Detail  int    `json:"detail"`
	Format  int    `json:"format"`
	Mode    string `json:"mode"`
	Style   string `json:"style"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// NewRichText wraps text in a single paragraph document.
func NewRichText(text string) RichText {
	return RichText{Root: richRoot{
		Children: []richParagraph{{
			Children: []richText{{
				Mode:    "normal",
				Text:    text,
				Type:    "text",
				Version: 1,
			}},
			Direction: "ltr",
			Type:      "paragraph",
			Version:   1,
		}},
		Direction: "ltr",
		Type:      "root",
		Version:   1,
	}}
}

// PlainText flattens the document.
func (r RichText) PlainText() string {
	var parts []string
	for _, p := range r.Root.Children {
		var b strings.Builder
		for _, t := range p.Children {
			b.WriteString(t.Text)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

// ToCharacterData maps a profile into the library format.
func (c *Client) ToCharacterData(profile CharacterProfile, project ProjectRef) CharacterData {
	characterID := profile.CharacterID
	if characterID == "" {
		characterID = c.GenerateUniqueCharacterID(profile.Name, project.ID)
	}

	var age *int
	if profile.PhysicalDescription.Age > 0 {
		v := profile.PhysicalDescription.Age
		age = &v
	}

	relationships := make([]string, 0, len(profile.Relationships))
	for _, rel := range profile.Relationships {
		relationships = append(relationships,
			fmt.Sprintf("%s: %s - %s", rel.CharacterName, rel.RelationshipType, rel.RelationshipDynamic))
	}

	skills := []Skill{}
	if psych := profile.CharacterDevelopment.Psychology; psych != (Psychology{}) {
		skills = append(skills,
			Skill{Skill: "Core Motivation", Level: "advanced", Description: psych.Motivation},
			Skill{Skill: "Character Strengths", Level: "intermediate", Description: psych.Desires},
		)
	}

	now := c.now()
	return CharacterData{
		Name:                profile.Name,
		CharacterID:         characterID,
		Status:              "in_development",
		Biography:           NewRichText(profile.CharacterDevelopment.Biography),
		Personality:         NewRichText(profile.CharacterDevelopment.Personality),
		Motivations:         NewRichText(profile.CharacterDevelopment.Motivations),
		Backstory:           NewRichText(profile.CharacterDevelopment.Backstory),
		PhysicalDescription: NewRichText(profile.PhysicalDescription.Description),
		VoiceDescription:    NewRichText(profile.DialogueVoice.VoiceDescription),
		Clothing:            NewRichText(profile.PhysicalDescription.Clothing),
		Age:                 age,
		Height:              profile.PhysicalDescription.Height,
		EyeColor:            profile.PhysicalDescription.EyeColor,
		HairColor:           profile.PhysicalDescription.HairColor,
		Relationships:       NewRichText(strings.Join(relationships, "\n\n")),
		Skills:              skills,
		NovelMovieIntegration: NovelMovieIntegration{
			ProjectID:          project.ID,
			ProjectName:        project.Name,
			LastSyncAt:         now,
			SyncStatus:         "synced",
			ConflictResolution: "auto",
			ChangeLog: []ChangeLogEntry{{
				Timestamp:  now,
				Source:     "novel-movie",
				Changes:    []string{"Initial character creation from Novel Movie"},
				ResolvedBy: "system",
			}},
		},
	}
}

// FallbackProfile is used when the LLM returns no usable character.
func FallbackProfile(name, projectName string) CharacterProfile {
	return CharacterProfile{
		Name:      name,
		Role:      "supporting",
		Archetype: "Supporting Character",
		CharacterDevelopment: CharacterDevelopment{
			Biography:   fmt.Sprintf("%s is a character in %s", name, projectName),
			Personality: "To be developed",
			Motivations: "To be determined",
			Backstory:   "Background to be established",
			Psychology: Psychology{
				Motivation: "Character motivation",
				Fears:      "Character fears",
				Desires:    "Character desires",
				Flaws:      "Character flaws",
			},
		},
		CharacterArc: CharacterArc{
			StartState:     "Initial state",
			Transformation: "Character growth",
			EndState:       "Final state",
		},
		PhysicalDescription: PhysicalDescription{
			Description: "Physical appearance to be defined",
			Age:         30,
			Height:      "Average height",
			EyeColor:    "Brown",
			HairColor:   "Brown",
			Clothing:    "Casual attire",
		},
		DialogueVoice: DialogueVoice{
			VoiceDescription: "Distinctive voice",
			Style:            "Natural speaking style",
			Patterns:         "Speech patterns",
			Vocabulary:       "Appropriate vocabulary",
		},
		Relationships: []Relationship{},
		GenerationMetadata: ProfileMetadata{
			GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
			GenerationMethod: "LLM DevelopCharacters",
			QualityScore:     75,
			Completeness:     80,
		},
	}
}

// DecodeProfile reads a profile stored as raw JSON.
func DecodeProfile(raw []byte) (CharacterProfile, bool) {
	var profile CharacterProfile
	if len(raw) == 0 {
		return profile, false
	}
	if err := json.Unmarshal(raw, &profile); err != nil || profile.Name == "" {
		return profile, false
	}
	return profile, true
}
