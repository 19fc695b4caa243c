package state

import (
	"context"
	"testing"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelSelection(t *testing.T) {
	s := NewModelSelection("meta-llama/llama-4-maverick")
	ctx := context.Background()

	assert.Equal(t, "meta-llama/llama-4-maverick", s.Model("telegram-1"))

	require.NoError(t, s.ChangeModel(ctx, "telegram-1", " anthropic/claude-sonnet-4 "))
	assert.Equal(t, "anthropic/claude-sonnet-4", s.Model("telegram-1"))
	assert.Equal(t, "meta-llama/llama-4-maverick", s.Model("telegram-2"))

	require.NoError(t, s.ChangeModel(ctx, "telegram-1", ""))
	assert.Equal(t, "meta-llama/llama-4-maverick", s.Model("telegram-1"))
}

func TestConversations(t *testing.T) {
	c := NewConversations(3)
	assert.Empty(t, c.History("u1"))

	c.Append("u1", core.Message{Role: core.RoleUser, Content: "1"}, core.Message{Role: core.RoleAssistant, Content: "2"})
	c.Append("u1", core.Message{Role: core.RoleUser, Content: "3"}, core.Message{Role: core.RoleAssistant, Content: "4"})

	h := c.History("u1")
	require.Len(t, h, 3)
	assert.Equal(t, "2", h[0].Content)
	assert.Equal(t, "4", h[2].Content)

	h[0].Content = "changed"
	assert.Equal(t, "2", c.History("u1")[0].Content)
	assert.Empty(t, c.History("u2"))

	c.Reset("u1")
	assert.Empty(t, c.History("u1"))
}
