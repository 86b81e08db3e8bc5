// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/novelmovie/novelmovie/internal/llm"
	"google.golang.org/api/option"
)

const (
	Name         = "google"
	DefaultModel = "gemini-2.5-flash"
)

func init() {
	llm.Register(Name, func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.5-pro",
				"gemini-2.5-flash",
				"gemini-2.0-flash",
			},
		}
	})
}

// Provider talks to Gemini through the generative-ai-go SDK.
type Provider struct {
	client            *genai.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("Gemini API key not provided")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := config["base_url"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client

	p.defaultModel = DefaultModel
	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	}
	return nil
}

func (p *Provider) GetName() string {
	return "Google Gemini"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.client == nil {
		return nil, errors.New("Gemini provider not initialized")
	}

	modelName := req.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	model := p.client.GenerativeModel(modelName)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if len(req.StopWords) > 0 {
		model.StopSequences = req.StopWords
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	text, finishReason := collectText(resp)
	if text == "" {
		return nil, errors.New("Gemini returned no text")
	}

	out := &llm.CompletionResponse{
		Text:         text,
		FinishReason: finishReason,
		ModelName:    modelName,
		ProviderName: p.GetName(),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// Close releases the SDK client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func collectText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}

	candidate := resp.Candidates[0]
	var b strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	return b.String(), strings.ToLower(candidate.FinishReason.String())
}
