package google

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/novelmovie/novelmovie/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestRegistered(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), Name)
	assert.Contains(t, llm.GetSupportedModelsForProvider(Name), DefaultModel)
}

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider(Name, map[string]string{})
	assert.Error(t, err)
}

func TestCollectText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("Act one. "),
				genai.Blob{MIMEType: "image/png"},
				genai.Text("Act two."),
			}},
		}},
	}

	text, _ := collectText(resp)
	assert.Equal(t, "Act one. Act two.", text)

	empty, reason := collectText(&genai.GenerateContentResponse{})
	assert.Empty(t, empty)
	assert.Empty(t, reason)
}
