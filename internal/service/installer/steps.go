package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

type choice struct {
	label string
	value string
}

// ChoiceStep stores the selected value under key.
type ChoiceStep struct {
	title   string
	key     string
	choices []choice
	cursor  int
}

func NewChoiceStep(title, key string, choices ...choice) *ChoiceStep {
	return &ChoiceStep{title: title, key: key, choices: choices}
}

func (s *ChoiceStep) Init(state *InstallState) tea.Cmd {
	return nil
}

func (s *ChoiceStep) Update(msg tea.Msg, state *InstallState) (Step, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	switch key.String() {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < len(s.choices)-1 {
			s.cursor++
		}
	case "enter":
		state.EnvVars[s.key] = s.choices[s.cursor].value
		return nil, nil
	}
	return s, nil
}

func (s *ChoiceStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString(s.title + "\n\n")
	for i, c := range s.choices {
		if s.cursor == i {
			b.WriteString(selStyle.Render("❯ "+c.label) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+c.label) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}

// SecretStep reads one value into an env key. The key and prompt may depend
// on earlier answers, so both are resolved in Init.
type SecretStep struct {
	resolve  func(state *InstallState) (key, title string, ok bool)
	optional bool
	secret   bool

	input textinput.Model
	key   string
	title string
}

func NewSecretStep(resolve func(state *InstallState) (key, title string, ok bool)) *SecretStep {
	return &SecretStep{resolve: resolve, secret: true}
}

func (s *SecretStep) Optional() *SecretStep {
	s.optional = true
	return s
}

func (s *SecretStep) Plain() *SecretStep {
	s.secret = false
	return s
}

func (s *SecretStep) Skip(state *InstallState) bool {
	_, _, ok := s.resolve(state)
	return !ok
}

func (s *SecretStep) Init(state *InstallState) tea.Cmd {
	s.key, s.title, _ = s.resolve(state)

	s.input = textinput.New()
	s.input.Focus()
	s.input.CharLimit = 255
	s.input.Width = 40
	if s.secret {
		s.input.EchoMode = textinput.EchoPassword
		s.input.EchoCharacter = '•'
	}
	if s.optional {
		s.input.Placeholder = "optional, press enter to skip"
	}
	return textinput.Blink
}

func (s *SecretStep) Update(msg tea.Msg, state *InstallState) (Step, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		val := strings.TrimSpace(s.input.Value())
		if val == "" && !s.optional {
			return s, nil
		}
		if val != "" {
			state.EnvVars[s.key] = val
		}
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *SecretStep) View(state *InstallState) string {
	return fmt.Sprintf("Enter your %s:\n\n%s\n\n(press enter to confirm)\n", s.title, s.input.View())
}

// FinalizationStep derives flags from the answers and drops wizard-only keys.
type FinalizationStep struct{}

func (s *FinalizationStep) Init(state *InstallState) tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *FinalizationStep) Update(msg tea.Msg, state *InstallState) (Step, tea.Cmd) {
	telegram := state.EnvVars["TELEGRAM_TOKEN"] != ""
	state.EnvVars["ENABLE_TELEGRAM"] = fmt.Sprint(telegram)
	state.EnvVars["ENABLE_HTTP"] = fmt.Sprint(state.EnvVars[keyChannel] != "telegram")

	if state.EnvVars[keyBackend] == "anthropic" && state.EnvVars["DEFAULT_MODEL"] == "" {
		state.EnvVars["DEFAULT_MODEL"] = "claude-sonnet-4-5"
	}
	if state.EnvVars["FACTBOT_DEBUG"] == "" {
		state.EnvVars["FACTBOT_DEBUG"] = "0"
	}

	delete(state.EnvVars, keyBackend)
	delete(state.EnvVars, keyChannel)
	return nil, nil
}

func (s *FinalizationStep) View(state *InstallState) string {
	return "Finalizing configuration...\n"
}

// SaveEnvStep writes the answers to the .env file. An existing file is
// never overwritten.
type SaveEnvStep struct {
	err   error
	saved bool
}

func (s *SaveEnvStep) Init(state *InstallState) tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}
	if s.err != nil {
		return s, nil
	}
	if err := saveEnv(state); err != nil {
		s.err = err
		return s, nil
	}
	s.saved = true
	return nil, nil
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

func saveEnv(state *InstallState) error {
	if err := os.MkdirAll(filepath.Dir(state.EnvPath), 0755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}
	if _, err := os.Stat(state.EnvPath); err == nil {
		return fmt.Errorf(".env file already exists at %s", state.EnvPath)
	}
	if err := godotenv.Write(state.EnvVars, state.EnvPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", state.EnvPath, err)
	}
	return os.Chmod(state.EnvPath, 0600)
}

var backendKeys = map[string][2]string{
	"openrouter":  {"OPENROUTER_API_KEY", "OpenRouter API Key"},
	"huggingface": {"HF_TOKEN", "Hugging Face token"},
	"anthropic":   {"ANTHROPIC_API_KEY", "Anthropic API Key"},
}

func backendKey(state *InstallState) (string, string, bool) {
	k, ok := backendKeys[state.EnvVars[keyBackend]]
	return k[0], k[1], ok
}

func fixed(key, title string) func(*InstallState) (string, string, bool) {
	return func(*InstallState) (string, string, bool) { return key, title, true }
}

func telegramToken(state *InstallState) (string, string, bool) {
	ch := state.EnvVars[keyChannel]
	return "TELEGRAM_TOKEN", "Telegram Bot Token", ch == "telegram" || ch == "both"
}

func telegramUsers(state *InstallState) (string, string, bool) {
	_, _, ok := telegramToken(state)
	return "TELEGRAM_ALLOWED_USERS", "allowed Telegram user ids (comma separated)", ok
}
