package mcp

import (
	"context"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
)

// ManagedClient is one open connection to a search server. Close is safe to
// call more than once.
type ManagedClient struct {
	*client.Client
	mu     sync.RWMutex
	closed bool
}

func (mc *ManagedClient) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return nil
	}
	mc.closed = true
	if mc.Client == nil {
		return nil
	}
	return mc.Client.Close()
}

func (mc *ManagedClient) IsClosed() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.closed
}

// callText invokes tool with a single query argument and joins the text
// parts of the result. isError reports a tool-level failure.
func (mc *ManagedClient) callText(ctx context.Context, tool, query string) (text string, isError bool, err error) {
	req := mcpproto.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = map[string]any{"query": query}

	res, err := mc.CallTool(ctx, req)
	if err != nil {
		return "", false, err
	}

	var output strings.Builder
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcpproto.TextContent:
			output.WriteString(c.Text + "\n")
		case *mcpproto.TextContent:
			output.WriteString(c.Text + "\n")
		}
	}
	return output.String(), res.IsError, nil
}
