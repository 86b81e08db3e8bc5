// internal/services/config_service.go
package services

import (
	"strings"
	"sync"
	"time"

	"github.com/novelmovie/novelmovie/internal/config"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/llm"
	"github.com/novelmovie/novelmovie/internal/utils"
)

const maxChangeHistory = 50

// ConfigService exposes the runtime LLM settings and applies changes to
// the live LLM service.
type ConfigService struct {
	LLM *LLMService

	changeHistory []ConfigChangeRecord
	mu            sync.RWMutex
}

// ConfigChangeRecord is one settings change.
type ConfigChangeRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	ChangedBy   string    `json:"changedBy"`
	OldProvider string    `json:"oldProvider"`
	NewProvider string    `json:"newProvider"`
}

func NewConfigService(llmService *LLMService) *ConfigService {
	return &ConfigService{LLM: llmService}
}

// ProviderInfo lists a registered provider and its models.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// LLMSettings is the masked view of the LLM configuration.
type LLMSettings struct {
	Provider   string            `json:"provider"`
	Model      string            `json:"model"`
	Ready      bool              `json:"ready"`
	ReadyState string            `json:"readyState"`
	Config     map[string]string `json:"config"`
	Providers  []ProviderInfo    `json:"providers"`
}

// maskSecret keeps the last four characters of a key.
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "key") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

func (s *ConfigService) GetLLMSettings() LLMSettings {
	current := config.GetCurrentConfig()

	masked := make(map[string]string, len(current.LLMConfig))
	for k, v := range current.LLMConfig {
		if isSecretKey(k) {
			v = maskSecret(v)
		}
		masked[k] = v
	}

	providers := make([]ProviderInfo, 0)
	for _, name := range llm.ListProviders() {
		providers = append(providers, ProviderInfo{Name: name, Models: llm.GetSupportedModelsForProvider(name)})
	}

	settings := LLMSettings{
		Provider:  current.LLMProvider,
		Config:    masked,
		Providers: providers,
	}
	if s.LLM != nil {
		settings.Model = s.LLM.GetDefaultModel()
		settings.Ready = s.LLM.IsReady()
		settings.ReadyState = s.LLM.GetReadyState()
	}
	return settings
}

// LLMSettingsUpdate changes the provider. Masked or empty secret values keep
// the stored secret.
type LLMSettingsUpdate struct {
	Provider string            `json:"provider"`
	Config   map[string]string `json:"config"`
}

func (s *ConfigService) UpdateLLMSettings(update LLMSettingsUpdate, changedBy string) (LLMSettings, error) {
	provider := strings.TrimSpace(update.Provider)
	if provider == "" {
		return LLMSettings{}, apperrors.NewValidationError("provider is required", nil)
	}
	known := false
	for _, name := range llm.ListProviders() {
		if name == provider {
			known = true
			break
		}
	}
	if !known {
		return LLMSettings{}, apperrors.NewValidationError("unknown LLM provider: "+provider, nil)
	}

	current := config.GetCurrentConfig()
	if current == nil {
		return LLMSettings{}, apperrors.NewProcessingError("runtime configuration is not loaded", nil)
	}
	merged := make(map[string]string, len(update.Config))
	for k, v := range update.Config {
		if isSecretKey(k) && (v == "" || strings.HasPrefix(v, "****")) {
			if current.LLMProvider == provider {
				v = current.LLMConfig[k]
			} else {
				v = ""
			}
		}
		merged[k] = v
	}
	if current.LLMProvider == provider {
		for k, v := range current.LLMConfig {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}

	// Validate, persist, then swap the live provider.
	candidate, err := llm.GetProvider(provider, merged)
	if err != nil {
		return LLMSettings{}, apperrors.NewValidationError("failed to configure LLM provider", err)
	}
	if err := config.UpdateLLMConfig(provider, merged); err != nil {
		if closer, ok := candidate.(llm.Closer); ok {
			_ = closer.Close()
		}
		return LLMSettings{}, apperrors.NewProcessingError("failed to save LLM settings", err)
	}
	if s.LLM != nil {
		s.LLM.InstallProvider(provider, candidate, merged)
	} else if closer, ok := candidate.(llm.Closer); ok {
		_ = closer.Close()
	}

	s.mu.Lock()
	s.changeHistory = append(s.changeHistory, ConfigChangeRecord{
		Timestamp:   time.Now(),
		ChangedBy:   changedBy,
		OldProvider: current.LLMProvider,
		NewProvider: provider,
	})
	if len(s.changeHistory) > maxChangeHistory {
		s.changeHistory = s.changeHistory[len(s.changeHistory)-maxChangeHistory:]
	}
	s.mu.Unlock()

	utils.GetLogger().Named("settings").Info("LLM provider updated", map[string]interface{}{
		"provider":   provider,
		"changed_by": changedBy,
	})
	return s.GetLLMSettings(), nil
}

// GetChangeHistory returns the newest changes first.
func (s *ConfigService) GetChangeHistory(limit int) []ConfigChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.changeHistory) {
		limit = len(s.changeHistory)
	}
	out := make([]ConfigChangeRecord, 0, limit)
	for i := len(s.changeHistory) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.changeHistory[i])
	}
	return out
}
