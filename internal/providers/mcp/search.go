package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
)

type Timeouts struct {
	Connect  time.Duration
	ToolCall time.Duration
}

func NewDefaultTimeouts() *Timeouts {
	return &Timeouts{
		Connect:  30 * time.Second,
		ToolCall: 30 * time.Second,
	}
}

// SearchTool exposes a web search tool of an MCP server as an evidence source.
// The connection is opened lazily and reopened after a failed call.
type SearchTool struct {
	cfg       ServerConfig
	tool      string
	transport Transport
	timeouts  *Timeouts

	mu  sync.Mutex
	cli *ManagedClient
}

func NewSearchTool(cfg ServerConfig, tool string) (*SearchTool, error) {
	tt, err := cfg.GetTransport()
	if err != nil {
		return nil, err
	}
	transport, err := NewTransport(tt)
	if err != nil {
		return nil, err
	}
	return newSearchTool(cfg, tool, transport), nil
}

func newSearchTool(cfg ServerConfig, tool string, transport Transport) *SearchTool {
	if tool == "" {
		tool = "search"
	}
	return &SearchTool{
		cfg:       cfg,
		tool:      tool,
		transport: transport,
		timeouts:  NewDefaultTimeouts(),
	}
}

func (s *SearchTool) Name() string {
	return "mcp:" + s.tool
}

// Start connects eagerly but tolerates an unavailable server.
func (s *SearchTool) Start(ctx context.Context) error {
	if _, err := s.client(ctx); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("tool", s.tool).Msg("mcp search server not reachable yet")
	}
	return nil
}

func (s *SearchTool) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cli == nil {
		return nil
	}
	err := s.cli.Close()
	s.cli = nil
	return err
}

func (s *SearchTool) Search(ctx context.Context, query string) ([]core.EvidenceItem, error) {
	cli, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	tCtx, cancel := context.WithTimeout(ctx, s.timeouts.ToolCall)
	defer cancel()

	text, isError, err := cli.callText(tCtx, s.tool, query)
	if err != nil {
		s.drop(cli)
		return nil, fmt.Errorf("mcp tool %s: %w", s.tool, err)
	}
	if isError {
		return nil, fmt.Errorf("tool execution failed: %s", strings.TrimSpace(text))
	}
	return ParseResults(text)
}

func (s *SearchTool) client(ctx context.Context) (*ManagedClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cli != nil && !s.cli.IsClosed() {
		return s.cli, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.timeouts.Connect)
	defer cancel()

	c, err := s.transport(connectCtx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mcp search server: %w", err)
	}
	s.cli = &ManagedClient{Client: c}
	return s.cli, nil
}

func (s *SearchTool) drop(cli *ManagedClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = cli.Close()
	if s.cli == cli {
		s.cli = nil
	}
}

// ParseResults reads the common JSON shapes search tools return: a bare array
// or an object holding one under results, organic, items or articles.
func ParseResults(text string) ([]core.EvidenceItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unrecognized search output: %w", err)
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range []string{"results", "organic", "items", "articles"} {
			if l, ok := v[key].([]any); ok {
				list = l
				break
			}
		}
	}

	items := make([]core.EvidenceItem, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := core.EvidenceItem{
			Title:   firstString(obj, "title", "name"),
			Link:    firstString(obj, "link", "url"),
			Snippet: firstString(obj, "snippet", "content", "description"),
			Image:   firstString(obj, "image", "imageUrl", "thumbnail"),
		}
		if item.Title == "" && item.Link == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
