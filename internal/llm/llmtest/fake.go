// Package llmtest provides a scripted provider for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/novelmovie/novelmovie/internal/llm"
)

// Provider answers requests with Respond, or with the queued Replies, or Err.
type Provider struct {
	mu       sync.Mutex
	Replies  []string
	Respond  func(req llm.CompletionRequest) (string, error)
	Err      error
	Requests []llm.CompletionRequest
}

// NewProvider queues replies returned in order. The last reply repeats.
func NewProvider(replies ...string) *Provider {
	return &Provider{Replies: replies}
}

// Failing returns a provider that always fails with err.
func Failing(err error) *Provider {
	return &Provider{Err: err}
}

func (p *Provider) Initialize(config map[string]string) error { return nil }

func (p *Provider) GetName() string { return "fake" }

func (p *Provider) GetSupportedModels() []string { return []string{"fake-model"} }

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}

	var text string
	switch {
	case p.Respond != nil:
		out, err := p.Respond(req)
		if err != nil {
			return nil, err
		}
		text = out
	case len(p.Replies) > 0:
		text = p.Replies[0]
		if len(p.Replies) > 1 {
			p.Replies = p.Replies[1:]
		}
	default:
		return nil, errors.New("llmtest: no reply queued")
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: "stop",
		TokensUsed:   len(strings.Fields(req.Prompt)) + len(strings.Fields(text)),
		ModelName:    "fake-model",
		ProviderName: "fake",
	}, nil
}

// Calls returns how many requests were made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
