package llm

import (
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

type OpenRouter struct {
	*OpenAICompatible
}

// NewOpenRouter asks for usage accounting so completions carry their cost.
func NewOpenRouter(baseURL, apiKey string, timeout time.Duration) *OpenRouter {
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	return &OpenRouter{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
			ExtraHeaders: map[string]string{
				"HTTP-Referer": core.AppRepositoryURL,
				"X-Title":      core.AppName,
			},
			ExtraBody: map[string]any{
				"usage": map[string]any{"include": true},
			},
			Timeout: timeout,
		}),
	}
}
