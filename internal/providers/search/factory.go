package search

import (
	"fmt"

	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/providers/mcp"
)

// NewFromConfig wires every source that has credentials. The MCP tool is
// returned separately so the caller can manage its connection lifecycle.
func NewFromConfig(cfg *config.SearchConfig) (*Aggregator, *mcp.SearchTool, error) {
	var sources []Source
	if cfg.SerperAPIKey != "" {
		sources = append(sources, NewSerper(cfg.SerperAPIKey))
	}
	if cfg.TavilyAPIKey != "" {
		sources = append(sources, NewTavily(cfg.TavilyAPIKey))
	}
	if cfg.NewsAPIKey != "" {
		sources = append(sources, NewNewsAPI(cfg.NewsAPIKey))
	}

	var tool *mcp.SearchTool
	if cfg.MCPCommand != "" || cfg.MCPURL != "" {
		var err error
		tool, err = mcp.NewSearchTool(mcp.ServerConfig{
			Command: cfg.MCPCommand,
			Args:    cfg.MCPArgs,
			URL:     cfg.MCPURL,
		}, cfg.MCPTool)
		if err != nil {
			return nil, nil, fmt.Errorf("mcp search: %w", err)
		}
		sources = append(sources, tool)
	}

	return NewAggregator(cfg.MaxResults, sources...), tool, nil
}
