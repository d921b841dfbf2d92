// Package config holds OPERATOR-LEVEL configuration for a Vitalis installation.
//
// This is infrastructure config set by whoever deploys the assistant: model
// selection, collaborator service endpoints, session limits, file caps.
// Set via env vars (VITALIS_*) or a config file (vitalis.config.yaml).
//
// The resolved Config is immutable once loaded and is injected into the
// workflow engine at construction. Nothing in the engine reads viper
// directly; ambient global state stops at this package boundary.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the VITALIS_ prefix
// (e.g. "model" → VITALIS_MODEL) and to a YAML field in
// vitalis.config.yaml.
const (
	KeyDataDir             = "data_dir"
	KeyProvider            = "provider"
	KeyModel               = "model"
	KeyModelTemperature    = "model_temperature"
	KeyModelMaxTokens      = "model_max_tokens"
	KeyOllamaBaseURL       = "ollama_base_url"
	KeyOpenAIBaseURL       = "openai_base_url"
	KeyTranscriberURL      = "transcriber_url"
	KeyVisionURL           = "vision_url"
	KeyRetrieverURL        = "retriever_url"
	KeyRetrievalTopK       = "retrieval_top_k"
	KeyHistoryWindow       = "history_window"
	KeyMaxConversationLen  = "max_conversation_length"
	KeySessionTimeoutMin   = "session_timeout_minutes"
	KeyMaxImageMB          = "max_image_mb"
	KeyMaxAudioMB          = "max_audio_mb"
	KeyGuardrailTablesPath = "guardrail_tables"
)

// Defaults. The model default matches the MedGemma build the assistant
// was tuned against; operators override per deployment.
const (
	DefaultProvider       = "ollama"
	DefaultModel          = "thiagomoraes/medgemma-4b-it:Q4_K_S"
	DefaultTemperature    = 0.3
	DefaultMaxTokens      = 1024
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultRetrievalTopK  = 3
	DefaultHistoryWindow  = 5
	DefaultMaxConvLen     = 50
	DefaultSessionTimeout = 30
	DefaultMaxImageMB     = 10
	DefaultMaxAudioMB     = 50
)

// Config holds resolved operator-level configuration for a Vitalis process.
type Config struct {
	DataDir         string  // Base directory for all state (~/.vitalis)
	Provider        string  // LLM provider: "ollama" or "openai"
	Model           string  // Chat model name
	Temperature     float64 // Sampling temperature for the reasoning call
	MaxTokens       int     // Completion token cap
	OllamaBaseURL   string  // Ollama API endpoint
	OpenAIBaseURL   string  // OpenAI-compatible endpoint ("" = api.openai.com)
	TranscriberURL  string  // Speech-to-text service endpoint
	VisionURL       string  // Skin-condition classifier service endpoint
	RetrieverURL    string  // Patient record retriever service endpoint
	RetrievalTopK   int     // Record excerpts requested per retrieval
	HistoryWindow   int     // Prior messages included in the reasoning context
	MaxConvLen      int     // Maximum messages retained per session
	SessionTimeout  int     // Minutes of inactivity before session expiry
	MaxImageMB      int     // Maximum image reference size
	MaxAudioMB      int     // Maximum audio reference size
	GuardrailTables string  // Optional path to a guardrail table override file
}

// SessionDBPath returns the full path to the session SQLite database.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	viper.SetEnvPrefix("VITALIS")
	viper.AutomaticEnv()
	viper.SetDefault(KeyProvider, DefaultProvider)
	viper.SetDefault(KeyModel, DefaultModel)
	viper.SetDefault(KeyModelTemperature, DefaultTemperature)
	viper.SetDefault(KeyModelMaxTokens, DefaultMaxTokens)
	viper.SetDefault(KeyOllamaBaseURL, DefaultOllamaURL)
	viper.SetDefault(KeyRetrievalTopK, DefaultRetrievalTopK)
	viper.SetDefault(KeyHistoryWindow, DefaultHistoryWindow)
	viper.SetDefault(KeyMaxConversationLen, DefaultMaxConvLen)
	viper.SetDefault(KeySessionTimeoutMin, DefaultSessionTimeout)
	viper.SetDefault(KeyMaxImageMB, DefaultMaxImageMB)
	viper.SetDefault(KeyMaxAudioMB, DefaultMaxAudioMB)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         resolveDataDir(),
		Provider:        viper.GetString(KeyProvider),
		Model:           viper.GetString(KeyModel),
		Temperature:     viper.GetFloat64(KeyModelTemperature),
		MaxTokens:       viper.GetInt(KeyModelMaxTokens),
		OllamaBaseURL:   viper.GetString(KeyOllamaBaseURL),
		OpenAIBaseURL:   viper.GetString(KeyOpenAIBaseURL),
		TranscriberURL:  viper.GetString(KeyTranscriberURL),
		VisionURL:       viper.GetString(KeyVisionURL),
		RetrieverURL:    viper.GetString(KeyRetrieverURL),
		RetrievalTopK:   viper.GetInt(KeyRetrievalTopK),
		HistoryWindow:   viper.GetInt(KeyHistoryWindow),
		MaxConvLen:      viper.GetInt(KeyMaxConversationLen),
		SessionTimeout:  viper.GetInt(KeySessionTimeoutMin),
		MaxImageMB:      viper.GetInt(KeyMaxImageMB),
		MaxAudioMB:      viper.GetInt(KeyMaxAudioMB),
		GuardrailTables: viper.GetString(KeyGuardrailTablesPath),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vitalis"
	}
	return filepath.Join(home, ".vitalis")
}

func (c *Config) validate() error {
	switch c.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("provider must be \"ollama\" or \"openai\" (got %q)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxConvLen <= 0 {
		return fmt.Errorf("max_conversation_length must be positive")
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window must not be negative")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("retrieval_top_k must be positive")
	}
	if c.MaxImageMB <= 0 || c.MaxAudioMB <= 0 {
		return fmt.Errorf("file size caps must be positive")
	}
	return nil
}
