package installer

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
)

func typed(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func TestWizard_HTTPOnly(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "runtime", ".env")
	m := newModel(envPath, getSteps())
	m.Init()

	m = send(t, m,
		enter,                   // OpenRouter
		typed("sk-or-1"), enter, // key
		enter,                   // no Serper key
		enter,                   // HTTP API
		nextMsg{}, nextMsg{},    // finalize and save
	)
	require.Equal(t, len(m.steps), m.currentStep)

	saved, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"OPENROUTER_API_KEY": "sk-or-1",
		"ENABLE_TELEGRAM":    "false",
		"ENABLE_HTTP":        "true",
		"FACTBOT_DEBUG":      "0",
	}, saved)
}

func TestWizard_AnthropicWithTelegram(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	m := newModel(envPath, getSteps())

	m = send(t, m,
		down, down, enter, // Anthropic
		typed("sk-ant"), enter,
		typed("serp"), enter,
		down, enter, // Telegram
		typed("123:ABC"), enter,
		typed("7,8"), enter,
		nextMsg{}, nextMsg{},
	)

	saved, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", saved["ANTHROPIC_API_KEY"])
	assert.Equal(t, "serp", saved["SERPER_API_KEY"])
	assert.Equal(t, "123:ABC", saved["TELEGRAM_TOKEN"])
	assert.Equal(t, "7,8", saved["TELEGRAM_ALLOWED_USERS"])
	assert.Equal(t, "true", saved["ENABLE_TELEGRAM"])
	assert.Equal(t, "false", saved["ENABLE_HTTP"])
	assert.Equal(t, "claude-sonnet-4-5", saved["DEFAULT_MODEL"])
	assert.NotContains(t, saved, keyBackend)
	assert.NotContains(t, saved, keyChannel)
}

func TestWizard_RequiredKeyBlocksEmptyEnter(t *testing.T) {
	m := newModel(filepath.Join(t.TempDir(), ".env"), getSteps())

	m = send(t, m, enter, enter)
	assert.Equal(t, 1, m.currentStep)

	m = send(t, m, typed("k"), enter)
	assert.Equal(t, 2, m.currentStep)
}

func TestWizard_CtrlC(t *testing.T) {
	m := newModel(filepath.Join(t.TempDir(), ".env"), getSteps())
	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.quitting)
	assert.Equal(t, "Installation cancelled.\n", m.View())
}

func TestSaveEnv_RefusesExistingFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, godotenv.Write(map[string]string{"A": "1"}, envPath))

	state := NewInstallState(envPath)
	state.EnvVars["B"] = "2"
	err := saveEnv(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	kept, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1"}, kept)
}
