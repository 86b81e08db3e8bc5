// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/novelmovie/novelmovie/internal/config"
	"github.com/novelmovie/novelmovie/internal/llm"
	"github.com/novelmovie/novelmovie/internal/utils"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"openrouter": "anthropic/claude-sonnet-4",
	"google":     "gemini-2.5-flash",
}

// LLMService is the single entry point for model calls.
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *LLMCache
	isReady            bool
	readyState         string
	activeDefaultModel string
	metrics            *utils.MetricsCollector
	usage              UsageRecorder
}

// LLMCache memoizes structured completions.
type LLMCache struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
	maxEntries int
}

type CacheEntry struct {
	Response  []byte
	CreatedAt time.Time
}

func newLLMCache() *LLMCache {
	return &LLMCache{
		cache:      make(map[string]*CacheEntry),
		expiration: 30 * time.Minute,
		maxEntries: 1000,
	}
}

// NewLLMService builds the service from the runtime config. A missing key
// yields a service that is not ready rather than an error.
func NewLLMService() *LLMService {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service
	}
	if cfg.LLMProvider == "" || cfg.LLMConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service
	}

	if err := service.UpdateProvider(cfg.LLMProvider, cfg.LLMConfig); err != nil {
		utils.GetLogger().Warn("LLM provider initialization failed", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err,
		})
	}
	return service
}

// NewLLMServiceWithProvider wraps an already initialized provider.
func NewLLMServiceWithProvider(name string, provider llm.Provider) *LLMService {
	service := createBaseLLMService()
	service.provider = provider
	service.providerName = name
	service.isReady = provider != nil
	if service.isReady {
		service.readyState = "Ready"
	}
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		readyState: "Uninitialized",
		cache:      newLLMCache(),
		metrics:    utils.GetMetricsCollector(),
	}
}

func (s *LLMService) IsReady() bool {
	if s == nil {
		return false
	}
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

func (s *LLMService) GetReadyState() string {
	if s == nil {
		return "LLM service not initialized"
	}
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider swaps the provider and clears the cache.
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := llm.GetProvider(providerName, cfg)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}
	s.InstallProvider(providerName, provider, cfg)
	return nil
}

// InstallProvider swaps in an initialized provider and closes the old one.
func (s *LLMService) InstallProvider(providerName string, provider llm.Provider, cfg map[string]string) {
	s.providerMutex.Lock()
	old := s.provider
	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(cfg)
	s.isReady = true
	s.readyState = "Ready"
	s.cache = newLLMCache()
	s.providerMutex.Unlock()

	if closer, ok := old.(llm.Closer); ok {
		_ = closer.Close()
	}
}

// SetUsageRecorder attaches a sink for per-call usage.
func (s *LLMService) SetUsageRecorder(r UsageRecorder) {
	s.providerMutex.Lock()
	s.usage = r
	s.providerMutex.Unlock()
}

func (s *LLMService) usageRecorder() UsageRecorder {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.usage
}

// Close releases the provider.
func (s *LLMService) Close() error {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	if closer, ok := s.provider.(llm.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}
	if model, exists := providerDefaultModels[providerName]; exists {
		return model
	}
	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			return models[0]
		}
	}
	return providerDefaultModels["openrouter"]
}

func extractDefaultModel(cfg map[string]string) string {
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	return strings.TrimSpace(cfg["model"])
}

// Complete runs a single completion.
func (s *LLMService) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	providerName := s.providerName
	s.providerMutex.RUnlock()

	req.Model = s.resolveModel(req.Model)

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed
	}
	s.metrics.RecordLLMRequest(providerName, tokens, time.Since(start), err)
	if usage := s.usageRecorder(); usage != nil {
		usage.RecordLLMUsage(providerName, tokens, err)
	}
	if err != nil {
		utils.GetLogger().Warn("LLM completion failed", map[string]interface{}{
			"provider": providerName,
			"model":    req.Model,
			"error":    err,
		})
		return nil, err
	}
	return resp, nil
}

// CompleteString is Complete returning trimmed text.
func (s *LLMService) CompleteString(ctx context.Context, prompt, systemPrompt string, temperature float32, maxTokens int) (string, error) {
	resp, err := s.Complete(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// CreateStructuredCompletion asks for JSON and decodes it into outputSchema.
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error {
	model := s.resolveModel("")
	cacheKey := s.generateCacheKey(prompt, systemPrompt, model)

	if s.checkAndUseCache(cacheKey, outputSchema) {
		return nil
	}

	structuredSystemPrompt := systemPrompt
	if systemPrompt != "" {
		structuredSystemPrompt += "\n\n"
	}
	structuredSystemPrompt += "Return your response in valid JSON format, following the provided output schema, without adding explanations or preambles."

	resp, err := s.Complete(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
		MaxTokens:    4000,
		Model:        model,
		JSONMode:     true,
	})
	if err != nil {
		return err
	}

	text := CleanLLMJSONResponse(resp.Text)
	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		return fmt.Errorf("failed to parse AI response into structured data: %w", err)
	}

	s.saveToCache(cacheKey, outputSchema)
	return nil
}

func (s *LLMService) generateCacheKey(prompt, systemPrompt, model string) string {
	s.providerMutex.RLock()
	providerName := s.providerName
	s.providerMutex.RUnlock()

	h := md5.New()
	h.Write([]byte(fmt.Sprintf("%s:::%s:::%s:::%s", prompt, systemPrompt, model, providerName)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (s *LLMService) currentCache() *LLMCache {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.cache
}

func (s *LLMService) checkAndUseCache(cacheKey string, outputSchema interface{}) bool {
	cache := s.currentCache()
	if cache == nil {
		return false
	}
	cached, found := cache.get(cacheKey)
	if !found {
		return false
	}
	if err := json.Unmarshal(cached, outputSchema); err != nil {
		return false
	}
	utils.GetLogger().Debug("LLM cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
	return true
}

func (s *LLMService) saveToCache(cacheKey string, response interface{}) {
	cache := s.currentCache()
	if cache == nil {
		return
	}
	data, err := json.Marshal(response)
	if err != nil {
		utils.GetLogger().Warn("Failed to serialize cached response", map[string]interface{}{"error": err})
		return
	}
	cache.save(cacheKey, data)
}

func (c *LLMCache) get(key string) ([]byte, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists || time.Since(entry.CreatedAt) > c.expiration {
		return nil, false
	}
	return entry.Response, true
}

func (c *LLMCache) save(key string, response []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = &CacheEntry{Response: response, CreatedAt: time.Now()}
	if len(c.cache) > c.maxEntries {
		c.cleanupOldest(c.maxEntries / 10)
	}
}

func (c *LLMCache) cleanupOldest(count int) {
	type keyAge struct {
		key string
		age time.Time
	}

	entries := make([]keyAge, 0, len(c.cache))
	for k, v := range c.cache {
		entries = append(entries, keyAge{k, v.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	for i := 0; i < count && i < len(entries); i++ {
		delete(c.cache, entries[i].key)
	}
}

var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```JSON", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
)

// CleanLLMJSONResponse strips fences and prose around the first JSON value.
func CleanLLMJSONResponse(s string) string {
	s = strings.TrimSpace(jsonNoiseReplacer.Replace(s))
	s = strings.Map(func(r rune) rune {
		if r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\u2060' {
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	s = s[start:]

	openCh, closeCh := byte('{'), byte('}')
	if s[0] == '[' {
		openCh, closeCh = '[', ']'
	}

	balance := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		char := s[i]
		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch char {
		case openCh:
			balance++
		case closeCh:
			balance--
			if balance == 0 {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	if end := strings.LastIndexByte(s, closeCh); end != -1 {
		return strings.TrimSpace(s[:end+1])
	}
	return strings.TrimSpace(s)
}
