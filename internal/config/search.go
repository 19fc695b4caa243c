package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/factbot/pkg/log"
)

type SearchConfig struct {
	SerperAPIKey string `env:"SERPER_API_KEY"`
	TavilyAPIKey string `env:"TAVILY_API_KEY"`
	NewsAPIKey   string `env:"NEWS_API_KEY"`

	// Optional MCP server exposing a web search tool
	MCPCommand string   `env:"SEARCH_MCP_COMMAND"`
	MCPArgs    []string `env:"SEARCH_MCP_ARGS" envSeparator:" "`
	MCPURL     string   `env:"SEARCH_MCP_URL"`
	MCPTool    string   `env:"SEARCH_MCP_TOOL" envDefault:"search"`

	MaxResults int `env:"SEARCH_MAX_RESULTS" envDefault:"10"`
}

func NewSearchConfig(ctx context.Context) *SearchConfig {
	c := &SearchConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Search config")
	}
	return c
}
