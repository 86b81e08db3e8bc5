// internal/charlib/types.go
package charlib

import "time"

// ==================== Character profiles ====================

// Psychology is the inner life of a developed character.
type Psychology struct {
	Motivation string `json:"motivation"`
	Fears      string `json:"fears"`
	Desires    string `json:"desires"`
	Flaws      string `json:"flaws"`
}

type CharacterDevelopment struct {
	Biography   string     `json:"biography"`
	Personality string     `json:"personality"`
	Motivations string     `json:"motivations"`
	Backstory   string     `json:"backstory"`
	Psychology  Psychology `json:"psychology"`
}

type CharacterArc struct {
	StartState     string `json:"startState"`
	Transformation string `json:"transformation"`
	EndState       string `json:"endState"`
}

type PhysicalDescription struct {
	Description string `json:"description"`
	Age         int    `json:"age,omitempty"`
	Height      string `json:"height,omitempty"`
	EyeColor    string `json:"eyeColor,omitempty"`
	HairColor   string `json:"hairColor,omitempty"`
	Clothing    string `json:"clothing,omitempty"`
}

type DialogueVoice struct {
	VoiceDescription string `json:"voiceDescription"`
	Style            string `json:"style,omitempty"`
	Patterns         string `json:"patterns,omitempty"`
	Vocabulary       string `json:"vocabulary,omitempty"`
}

type Relationship struct {
	CharacterName       string `json:"characterName"`
	RelationshipType    string `json:"relationshipType"`
	RelationshipDynamic string `json:"relationshipDynamic"`
}

type ProfileMetadata struct {
	GeneratedAt      string `json:"generatedAt,omitempty"`
	GenerationMethod string `json:"generationMethod,omitempty"`
	QualityScore     int    `json:"qualityScore,omitempty"`
	Completeness     int    `json:"completeness,omitempty"`
}

// CharacterProfile is a fully developed character as produced by the LLM.
type CharacterProfile struct {
	Name                 string               `json:"name"`
	CharacterID          string               `json:"characterId,omitempty"`
	Role                 string               `json:"role,omitempty"`
	Archetype            string               `json:"archetype,omitempty"`
	CharacterDevelopment CharacterDevelopment `json:"characterDevelopment"`
	CharacterArc         CharacterArc         `json:"characterArc"`
	PhysicalDescription  PhysicalDescription  `json:"physicalDescription"`
	DialogueVoice        DialogueVoice        `json:"dialogueVoice"`
	Relationships        []Relationship       `json:"relationships"`
	GenerationMetadata   ProfileMetadata      `json:"generationMetadata"`
}

// ==================== Library payloads ====================

// ProjectRef identifies the project a character belongs to.
type ProjectRef struct {
	ID   string
	Name string
}

type Skill struct {
	Skill       string `json:"skill"`
	Level       string `json:"level"`
	Description string `json:"description"`
}

type ChangeLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Changes    []string  `json:"changes"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
}

type NovelMovieIntegration struct {
	ProjectID          string           `json:"projectId"`
	ProjectName        string           `json:"projectName"`
	LastSyncAt         time.Time        `json:"lastSyncAt"`
	SyncStatus         string           `json:"syncStatus"`
	ConflictResolution string           `json:"conflictResolution"`
	ChangeLog          []ChangeLogEntry `json:"changeLog"`
}

// CharacterData is a character in the library's own format.
type CharacterData struct {
	Name                  string                `json:"name"`
	CharacterID           string                `json:"characterId"`
	Status                string                `json:"status"`
	Biography             RichText              `json:"biography"`
	Personality           RichText              `json:"personality"`
	Motivations           RichText              `json:"motivations"`
	Backstory             RichText              `json:"backstory"`
	PhysicalDescription   RichText              `json:"physicalDescription"`
	VoiceDescription      RichText              `json:"voiceDescription"`
	Clothing              RichText              `json:"clothing"`
	Age                   *int                  `json:"age"`
	Height                string                `json:"height"`
	Weight                string                `json:"weight"`
	EyeColor              string                `json:"eyeColor"`
	HairColor             string                `json:"hairColor"`
	Relationships         RichText              `json:"relationships"`
	Skills                []Skill               `json:"skills"`
	NovelMovieIntegration NovelMovieIntegration `json:"novelMovieIntegration"`
}

type SyncSettings struct {
	AutoSync           bool   `json:"autoSync"`
	ConflictResolution string `json:"conflictResolution"`
}

type NovelMovieCharacterRequest struct {
	NovelMovieProjectID string        `json:"novelMovieProjectId"`
	ProjectName         string        `json:"projectName"`
	CharacterData       CharacterData `json:"characterData"`
	SyncSettings        SyncSettings  `json:"syncSettings"`
}

// BulkCharacterItem is one character of a bulk request.
type BulkCharacterItem struct {
	CharacterData CharacterData `json:"characterData"`
}

type BulkNovelMovieRequest struct {
	ProjectID    string              `json:"projectId"`
	Characters   []BulkCharacterItem `json:"characters"`
	Operation    string              `json:"operation"`
	SyncSettings SyncSettings        `json:"syncSettings"`
}

// BulkCreateResponse lists the created characters in request order.
type BulkCreateResponse struct {
	Success    bool                      `json:"success"`
	Characters []CreateCharacterResponse `json:"characters"`
	Message    string                    `json:"message,omitempty"`
}

// CreateCharacterResponse is the library answer to a create call.
type CreateCharacterResponse struct {
	Success     bool   `json:"success"`
	CharacterID string `json:"characterId"`
	ID          string `json:"id"`
	Message     string `json:"message,omitempty"`
}

// ==================== Images ====================

// ImageResult is one generated image. The library is inconsistent about
// field names, so every alias is decoded.
type ImageResult struct {
	Success     *bool   `json:"success,omitempty"`
	PublicURL   string  `json:"publicUrl,omitempty"`
	URL         string  `json:"url,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Filename    string  `json:"filename,omitempty"`
	ImageID     string  `json:"imageId,omitempty"`
	DinoAssetID string  `json:"dinoAssetId,omitempty"`
	Quality     float64 `json:"qualityScore,omitempty"`
	Consistency float64 `json:"consistencyScore,omitempty"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// SourceURL returns the first URL the library filled in.
func (r ImageResult) SourceURL() string {
	for _, u := range []string{r.PublicURL, r.ImageURL, r.URL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// ExternalID returns the library image id.
func (r ImageResult) ExternalID() string {
	if r.ImageID != "" {
		return r.ImageID
	}
	return r.DinoAssetID
}

// Succeeded treats a missing success flag as success.
func (r ImageResult) Succeeded() bool {
	return r.Success == nil || *r.Success
}

// ImageSetResponse is returned by the 360 set endpoint.
type ImageSetResponse struct {
	Success *bool         `json:"success,omitempty"`
	Message string        `json:"message,omitempty"`
	Images  []ImageResult `json:"images"`
	Data    *struct {
		Images []ImageResult `json:"images"`
	} `json:"data,omitempty"`
}

// AllImages merges the top level and nested image lists.
func (r ImageSetResponse) AllImages() []ImageResult {
	if len(r.Images) > 0 || r.Data == nil {
		return r.Images
	}
	return r.Data.Images
}

type Set360Options struct {
	Style            string `json:"style,omitempty"`
	QualityThreshold int    `json:"qualityThreshold,omitempty"`
	ImageCount       int    `json:"imageCount,omitempty"`
}

type SceneContext struct {
	Description string
	Type        string
	Mood        string
	Lighting    string
}

type sceneImageRequest struct {
	SceneContext  string `json:"sceneContext"`
	SceneType     string `json:"sceneType"`
	Mood          string `json:"mood,omitempty"`
	LightingStyle string `json:"lightingStyle,omitempty"`
}

type SmartImageRequest struct {
	Prompt               string `json:"prompt"`
	MaxRetries           int    `json:"maxRetries,omitempty"`
	QualityThreshold     int    `json:"qualityThreshold,omitempty"`
	ConsistencyThreshold int    `json:"consistencyThreshold,omitempty"`
	Style                string `json:"style,omitempty"`
	Tags                 string `json:"tags,omitempty"`
}

type SmartImageResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *ImageResult `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// HealthResult reports the library health check.
type HealthResult struct {
	IsHealthy    bool      `json:"isHealthy"`
	ResponseTime int64     `json:"responseTime"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
