package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Name: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(ProviderConfig{Name: "openai", OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(ProviderConfig{Name: "vertex"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message":           map[string]string{"role": "assistant", "content": "Stay hydrated."},
			"done_reason":       "stop",
			"prompt_eval_count": 42,
			"eval_count":        7,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:       "medgemma",
		Temperature: 0.3,
		MaxTokens:   128,
		Messages: []Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "How much water should I drink?"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Stay hydrated.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 42, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)

	assert.Equal(t, "medgemma", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.3, got.Options.Temperature)
	assert.Equal(t, 128, got.Options.NumPredict)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestOllamaGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	_, err := p.Generate(context.Background(), &Request{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "Rest and fluids may help."},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 30, "completion_tokens": 8, "total_tokens": 38},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "I have a mild cold."}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Rest and fluids may help.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 30, resp.InputTokens)
	assert.Equal(t, 8, resp.OutputTokens)
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "chatcmpl-2", "choices": []interface{}{}})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL)
	_, err := p.Generate(context.Background(), &Request{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
