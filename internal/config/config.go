// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// runtime settings singleton
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig holds the settings that can change while the server runs.
// It is persisted to <DataDir>/config.json.
type AppConfig struct {
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	MediaDir  string `json:"media_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config is the process configuration read from the environment.
type Config struct {
	Port          string
	DataDir       string
	MediaDir      string
	LogDir        string
	DebugMode     bool
	DatabaseURL   string
	PublicBaseURL string

	// LLM
	LLMProvider      string
	OpenRouterAPIKey string
	OpenRouterURL    string
	OpenRouterModel  string
	GeminiAPIKey     string
	GeminiModel      string
	SiteURL          string

	// character library
	CharacterLibraryURL     string
	CharacterLibraryTimeout time.Duration
	CharacterLibraryRetries int

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool

	// auth
	JWTSecret    string
	AuthRequired bool

	// EncryptionKey protects API keys written to config.json. Empty disables encryption.
	EncryptionKey string
}

var defaultCORSOrigins = []string{
	"http://localhost:3001",
	"http://localhost:3002",
	"http://localhost:3003",
	"https://local.ft.tc",
}

// Load reads .env (optional) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	dataDir := getEnvPath("DATA_DIR", "data")

	config := &Config{
		Port:          port,
		DataDir:       dataDir,
		MediaDir:      getEnvPath("MEDIA_DIR", filepath.Join(dataDir, "media")),
		LogDir:        getEnvPath("LOG_DIR", "logs"),
		DebugMode:     getEnvBool("DEBUG_MODE", false),
		DatabaseURL:   getEnv("DATABASE_URL", "sqlite://"+filepath.Join(dataDir, "novel-movie.db")),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),

		LLMProvider:      getEnv("LLM_PROVIDER", "openrouter"),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:  getEnv("OPENROUTER_DEFAULT_MODEL", "anthropic/claude-sonnet-4"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		SiteURL:          getEnv("SITE_URL", "https://localhost:3001"),

		CharacterLibraryURL:     strings.TrimRight(getEnv("CHARACTER_LIBRARY_API_URL", "https://character.ft.tc"), "/"),
		CharacterLibraryTimeout: time.Duration(getEnvInt("CHARACTER_LIBRARY_TIMEOUT", 60000)) * time.Millisecond,
		CharacterLibraryRetries: getEnvInt("CHARACTER_LIBRARY_RETRY_ATTEMPTS", 3),

		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		CORSAllowedMethods:   getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getEnvList("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
		CORSAllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		AuthRequired:  getEnvBool("AUTH_REQUIRED", false),
		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),
	}

	if config.CharacterLibraryRetries < 1 {
		config.CharacterLibraryRetries = 1
	}

	return config, nil
}

// LLMSettings returns the provider config map derived from the environment.
func (c *Config) LLMSettings() (string, map[string]string) {
	switch c.LLMProvider {
	case "google":
		return "google", map[string]string{
			"api_key":       c.GeminiAPIKey,
			"default_model": c.GeminiModel,
		}
	default:
		return c.LLMProvider, map[string]string{
			"api_key":       c.OpenRouterAPIKey,
			"base_url":      c.OpenRouterURL,
			"default_model": c.OpenRouterModel,
			"http_referer":  c.SiteURL,
			"app_name":      "Novel Movie",
		}
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath returns a directory path and creates it when missing.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvList splits a comma separated variable and drops blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// ========================================
// runtime settings
// ========================================

// InitConfig loads config.json from dataDir, seeding it from the environment.
func InitConfig(dataDir string) error {
	base, err := Load()
	if err != nil {
		return err
	}
	return InitConfigFrom(base, dataDir)
}

// InitConfigFrom is InitConfig with an explicit base config.
func InitConfigFrom(base *Config, dataDir string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(dataDir, "config.json")

	provider, llmConfig := base.LLMSettings()
	currentConfig = &AppConfig{
		Port:        base.Port,
		DataDir:     base.DataDir,
		MediaDir:    base.MediaDir,
		LogDir:      base.LogDir,
		DebugMode:   base.DebugMode,
		LLMProvider: provider,
		LLMConfig:   llmConfig,
	}

	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil && saved.LLMProvider != "" {
			saved.Port = base.Port
			saved.DataDir = base.DataDir
			saved.MediaDir = base.MediaDir
			saved.LogDir = base.LogDir
			saved.DebugMode = base.DebugMode

			if saved.LLMConfig == nil {
				saved.LLMConfig = map[string]string{}
			}
			if key, ok := saved.LLMConfig["api_key"]; ok && key != "" {
				saved.LLMConfig["api_key"] = decryptKey(key, base.EncryptionKey)
			}
			// the environment wins when the file carries no key
			if saved.LLMConfig["api_key"] == "" && saved.LLMProvider == provider {
				saved.LLMConfig["api_key"] = llmConfig["api_key"]
			}
			currentConfig = &saved
		}
	}

	encryptionKey = base.EncryptionKey
	return saveConfigLocked()
}

var encryptionKey string

// GetCurrentConfig returns a copy of the runtime settings.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		base, _ := Load()
		provider, llmConfig := base.LLMSettings()
		return &AppConfig{
			Port:        base.Port,
			DataDir:     base.DataDir,
			MediaDir:    base.MediaDir,
			LogDir:      base.LogDir,
			DebugMode:   base.DebugMode,
			LLMProvider: provider,
			LLMConfig:   llmConfig,
		}
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig replaces the LLM provider settings and persists them.
func UpdateLLMConfig(provider string, llmConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config store not initialized")
	}

	oldProvider, oldConfig := currentConfig.LLMProvider, currentConfig.LLMConfig
	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = llmConfig

	if err := saveConfigLocked(); err != nil {
		currentConfig.LLMProvider = oldProvider
		currentConfig.LLMConfig = oldConfig
		return err
	}
	return nil
}

// SaveConfig writes the runtime settings to disk.
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveConfigLocked()
}

func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no config to save")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	onDisk := *currentConfig
	onDisk.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		onDisk.LLMConfig[k] = v
	}
	if key := onDisk.LLMConfig["api_key"]; key != "" {
		onDisk.LLMConfig["api_key"] = encryptKey(key, encryptionKey)
	}

	data, err := json.MarshalIndent(&onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return os.WriteFile(configFile, data, 0600)
}
