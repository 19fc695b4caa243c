package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var history = []core.Message{
	{Role: core.RoleSystem, Content: "be brief"},
	{Role: core.RoleUser, Content: "hello there"},
}

func TestOpenRouter_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, core.AppName, r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "General Kenobi"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15, "cost": 0.0042}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenRouter(srv.URL, "key", time.Second).Complete(context.Background(), history, "meta-llama/llama-4-maverick")
	require.NoError(t, err)

	assert.Equal(t, "General Kenobi", c.Content)
	require.NotNil(t, c.Cost)
	assert.InDelta(t, 0.0042, *c.Cost, 1e-12)
	assert.Equal(t, &core.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, c.Usage)

	assert.Equal(t, "meta-llama/llama-4-maverick", got["model"])
	assert.Equal(t, map[string]any{"include": true}, got["usage"])
	assert.Len(t, got["messages"], 2)
}

func TestHFRouter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 0.3, body["temperature"])
		assert.NotContains(t, body, "usage")
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer srv.Close()

	c, err := NewHFRouter(srv.URL+"/", "hf", time.Second).Complete(context.Background(), history, "meta-llama/Llama-3.1-8B-Instruct:sambanova")
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Content)
	assert.Nil(t, c.Cost)
	assert.Nil(t, c.Usage)
}

func TestOpenAICompatible_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error": "slow down"}`},
		{"no choices", http.StatusOK, `{"choices": []}`},
		{"blank content", http.StatusOK, `{"choices": [{"message": {"content": "  "}}]}`},
		{"bad json", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenRouter(srv.URL, "key", time.Second).Complete(context.Background(), history, "m")
			assert.Error(t, err)
		})
	}
}

func TestAnthropic_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Hello"}, {"type": "text", "text": " world"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic("key", time.Second, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	c, err := a.Complete(context.Background(), history, "anthropic/claude-sonnet-4-5")
	require.NoError(t, err)

	assert.Equal(t, "Hello world", c.Content)
	assert.Nil(t, c.Cost)
	assert.Equal(t, &core.TokenUsage{PromptTokens: 20, CompletionTokens: 7, TotalTokens: 27}, c.Usage)

	assert.Equal(t, "claude-sonnet-4-5", got["model"])
	assert.Len(t, got["messages"], 1)
	assert.NotEmpty(t, got["system"])
}

type namedCompleter string

func (n namedCompleter) Complete(ctx context.Context, history []core.Message, modelID string) (core.Completion, error) {
	return core.Completion{Content: string(n)}, nil
}

func TestRouter(t *testing.T) {
	r := NewRouter().
		Handle("anthropic", IsAnthropicModel, namedCompleter("anthropic")).
		Handle("huggingface", IsHFRouterModel, namedCompleter("huggingface")).
		Fallback("openrouter", namedCompleter("openrouter"))

	tests := map[string]string{
		"claude-3-5-haiku-latest":                    "anthropic",
		"anthropic/claude-sonnet-4":                  "anthropic",
		"meta-llama/Llama-3.1-8B-Instruct:sambanova": "huggingface",
		"openai/gpt-oss-20b:fireworks-ai":            "huggingface",
		"google/gemma-3-27b-it:free":                 "openrouter",
		"meta-llama/llama-4-maverick":                "openrouter",
		"gpt-4o":                                     "openrouter",
	}
	for model, want := range tests {
		c, err := r.Complete(context.Background(), history, model)
		require.NoError(t, err)
		assert.Equal(t, want, c.Content, model)
	}

	_, err := NewRouter().Complete(context.Background(), history, "x")
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), &config.LLMConfig{})
	assert.Error(t, err)

	r, err := NewProvider(context.Background(), &config.LLMConfig{HFToken: "hf"})
	require.NoError(t, err)
	rt, ok := r.pick("any/model")
	require.True(t, ok)
	assert.Equal(t, "huggingface", rt.name)

	r, err = NewProvider(context.Background(), &config.LLMConfig{AnthropicAPIKey: "a"})
	require.NoError(t, err)
	_, ok = r.pick("meta-llama/llama-4-maverick")
	assert.False(t, ok)
}
