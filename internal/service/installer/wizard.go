package installer

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("5"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Step represents a single step in the installation wizard
type Step interface {
	Init(state *InstallState) tea.Cmd
	Update(msg tea.Msg, state *InstallState) (Step, tea.Cmd)
	View(state *InstallState) string
}

// skipper is implemented by steps that only apply to some answers.
type skipper interface {
	Skip(state *InstallState) bool
}

func getSteps() []Step {
	return []Step{
		NewChoiceStep("Select your model backend:", keyBackend,
			choice{"OpenRouter", "openrouter"},
			choice{"Hugging Face router", "huggingface"},
			choice{"Anthropic", "anthropic"},
		),
		NewSecretStep(backendKey),
		NewSecretStep(fixed("SERPER_API_KEY", "Serper API Key")).Optional(),
		NewChoiceStep("Where should FactBot answer?", keyChannel,
			choice{"HTTP API", "http"},
			choice{"Telegram", "telegram"},
			choice{"Both", "both"},
		),
		NewSecretStep(telegramToken),
		NewSecretStep(telegramUsers).Optional().Plain(),
		&FinalizationStep{},
		&SaveEnvStep{},
	}
}

type nextMsg struct{}

// model is the main Bubble Tea model that orchestrates the steps
type model struct {
	steps       []Step
	currentStep int
	state       *InstallState
	quitting    bool
}

func newModel(envPath string, steps []Step) model {
	return model{
		steps: steps,
		state: NewInstallState(envPath),
	}
}

func (m model) Init() tea.Cmd {
	return m.enter()
}

// enter skips steps that do not apply and initializes the current one.
func (m *model) enter() tea.Cmd {
	for m.currentStep < len(m.steps) {
		if s, ok := m.steps[m.currentStep].(skipper); ok && s.Skip(m.state) {
			m.currentStep++
			continue
		}
		return m.steps[m.currentStep].Init(m.state)
	}
	return tea.Quit
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.currentStep >= len(m.steps) {
		return m, tea.Quit
	}

	nextStep, cmd := m.steps[m.currentStep].Update(msg, m.state)
	if nextStep == nil {
		m.currentStep++
		return m, m.enter()
	}

	m.steps[m.currentStep] = nextStep
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return "Installation cancelled.\n"
	}
	if m.currentStep >= len(m.steps) {
		return "Configuration complete!\n"
	}
	return titleStyle.Render("Installing FactBot") + "\n\n" + m.steps[m.currentStep].View(m.state)
}

// RunWizard collects the configuration interactively and writes it to envPath.
func RunWizard(envPath string) (*InstallState, error) {
	p := tea.NewProgram(newModel(envPath, getSteps()), tea.WithAltScreen())
	m, err := p.Run()
	if err != nil {
		return nil, err
	}

	finalModel := m.(model)
	if finalModel.quitting {
		return nil, fmt.Errorf("factbot installation interrupted")
	}
	if finalModel.currentStep < len(finalModel.steps) {
		return nil, fmt.Errorf("factbot installation did not complete")
	}
	return finalModel.state, nil
}
