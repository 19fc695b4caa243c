package memory

import (
	"context"
	"testing"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want []string
	}{
		{"question", "My name is Sam, do you remember?", nil},
		{"recall", "what is my name", nil},
		{"name", "My name is Sam Carter and I like long walks", []string{"User's name is Sam Carter", "Preference: long walks"}},
		{"call me", "please call me Max.", []string{"User's name is Max"}},
		{"location", "I live in New York and work remotely", []string{"User lives in New York"}},
		{"birthday", "my birthday is March 14", []string{"User birthday is March 14"}},
		{"from now on", "from now on answer in French", []string{"Preference: answer in French"}},
		{"generic profile", "I'm a nurse working night shifts", []string{"I'm a nurse working night shifts"}},
		{"nothing", "the weather is nice today", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.msg)
			var contents []string
			for _, c := range got {
				contents = append(contents, c.Content)
				assert.Equal(t, "chat", c.Source)
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestExtract_Kinds(t *testing.T) {
	got := Extract("My name is Ana and I prefer short answers")
	require.Len(t, got, 2)
	assert.Equal(t, core.MemoryProfile, got[0].Kind)
	assert.Equal(t, 0.9, got[0].Importance)
	assert.Equal(t, []string{"name"}, got[0].Tags)
	assert.Equal(t, core.MemoryPreference, got[1].Kind)
	assert.Equal(t, 0.85, got[1].Importance)
}

func TestExtractor_Remember(t *testing.T) {
	store := &fakeStore{}
	ex := NewExtractor(newTestService(store))
	ctx := context.Background()

	n, err := ex.Remember(ctx, "u1", "My name is Ana and I prefer short answers")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same statement again is deduplicated against stored content.
	n, err = ex.Remember(ctx, "u1", "my name is Ana and i prefer short answers")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = ex.Remember(ctx, "", "My name is Ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, store.created, 2)
}
