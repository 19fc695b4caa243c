package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

// OpenAICompatible talks to any /chat/completions endpoint.
type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
	extraBody    map[string]any
	temperature  *float64
}

type OpenAICompatibleConfig struct {
	BaseURL      string // including the version segment, e.g. https://host/v1
	APIKey       string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
	ExtraBody    map[string]any
	Temperature  *float64
	Timeout      time.Duration
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(strings.TrimRight(cfg.BaseURL, "/"), cfg.APIKey, cfg.Timeout),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
		extraBody:    cfg.ExtraBody,
		temperature:  cfg.Temperature,
	}
}

func (o *OpenAICompatible) Complete(ctx context.Context, history []core.Message, modelID string) (core.Completion, error) {
	payload := map[string]any{
		"model":    modelID,
		"messages": history,
		"stream":   false,
	}
	if o.temperature != nil {
		payload["temperature"] = *o.temperature
	}
	for k, v := range o.extraBody {
		payload[k] = v
	}

	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/chat/completions", payload, headers)
	if err != nil {
		return core.Completion{}, err
	}
	defer resp.Body.Close()

	return parseOpenAIResponse(resp)
}

func parseOpenAIResponse(resp *http.Response) (core.Completion, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Completion{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.Completion{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int      `json:"prompt_tokens"`
			CompletionTokens int      `json:"completion_tokens"`
			TotalTokens      int      `json:"total_tokens"`
			Cost             *float64 `json:"cost"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Completion{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return core.Completion{}, fmt.Errorf("empty choices: %s", string(data))
	}

	content := result.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return core.Completion{}, fmt.Errorf("empty completion")
	}

	out := core.Completion{Content: content}
	if u := result.Usage; u != nil {
		out.Usage = &core.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
		out.Cost = u.Cost
	}
	return out, nil
}
