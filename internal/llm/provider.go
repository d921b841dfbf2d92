// Package llm abstracts the chat-completion collaborators behind a single
// Provider interface. The engine treats a provider failure as recoverable;
// timeouts are applied here, not by callers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutChatCall bounds every provider call.
const TimeoutChatCall = 60 * time.Second

// ErrUnknownProvider is returned for provider names outside the supported set.
var ErrUnknownProvider = errors.New("unknown LLM provider")

// Provider is the interface all chat providers implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama", "openai").
	Name() string
	// Generate sends a chat completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request represents a chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message represents a chat message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Response represents a chat completion response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}

// ProviderConfig selects and configures a concrete provider.
type ProviderConfig struct {
	Name          string // "ollama" or "openai"
	OllamaBaseURL string
	OpenAIBaseURL string // "" means the public OpenAI endpoint
	OpenAIAPIKey  string
}

// NewProvider constructs the provider named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "ollama":
		return NewOllamaProvider(cfg.OllamaBaseURL), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
}
