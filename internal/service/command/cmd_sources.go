package command

import (
	"context"
	"fmt"
)

type SourceLister interface {
	Sources() []string
}

type SourcesCommand struct {
	sources   SourceLister
	formatter *ResponseFormatter
}

func NewSourcesCommand(sources SourceLister) *SourcesCommand {
	return &SourcesCommand{
		sources:   sources,
		formatter: NewResponseFormatter(),
	}
}

func (c *SourcesCommand) Name() string {
	return "sources"
}

func (c *SourcesCommand) Description() string {
	return "Show configured evidence sources"
}

func (c *SourcesCommand) Execute(ctx context.Context, uid string, args []string) (string, error) {
	names := c.sources.Sources()
	if len(names) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Evidence Sources"),
			c.formatter.Label("Status", "No evidence sources are configured."),
			c.formatter.Tip("Set SERPER_API_KEY, TAVILY_API_KEY, NEWS_API_KEY or SEARCH_MCP_URL"),
		), nil
	}

	return c.formatter.Combine(
		c.formatter.Info("Evidence Sources"),
		c.formatter.Label("Configured", fmt.Sprintf("%d", len(names))),
		c.formatter.List(names),
	), nil
}
