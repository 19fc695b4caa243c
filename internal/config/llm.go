package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/factbot/pkg/log"
)

// LLMConfig enables every backend whose key is set.
type LLMConfig struct {
	OpenRouterAPIKey  string        `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	HFToken           string        `env:"HF_TOKEN"`
	HFRouterBaseURL   string        `env:"HF_ROUTER_BASE_URL" envDefault:"https://router.huggingface.co/v1"`
	AnthropicAPIKey   string        `env:"ANTHROPIC_API_KEY"`
	Timeout           time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
