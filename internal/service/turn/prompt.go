package turn

import (
	"os"
	"strings"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/citation"
	"github.com/sandevgo/factbot/internal/service/memory"
)

const defaultSystemPrompt = `You are FactBot, a helpful, multilingual assistant.
For general chat: be conversational and concise.
For fact-checking: ONLY cite links from the provided Evidence. Never invent URLs. Prefer short citations like [1], [2] and include a Sources list at the end matching those indices.`

const strictness = "\nAnswer ONLY what is asked. If the user asks for a single specific detail (e.g., \"When is my birthday?\"), reply with just that detail in one short sentence. Do not restate profile details unless explicitly requested."

// PromptBuilder assembles model input. The base prompt can be replaced by a
// SYSTEM.md file in the runtime directory.
type PromptBuilder struct {
	overridePath string
}

func NewPromptBuilder(overridePath string) *PromptBuilder {
	return &PromptBuilder{overridePath: overridePath}
}

func (p *PromptBuilder) base() string {
	if p == nil || p.overridePath == "" {
		return defaultSystemPrompt
	}
	content, err := os.ReadFile(p.overridePath)
	if err != nil {
		return defaultSystemPrompt
	}
	if s := strings.TrimSpace(string(content)); s != "" {
		return s
	}
	return defaultSystemPrompt
}

func (p *PromptBuilder) System(preferenceHint string) string {
	sys := p.base() + strictness
	if hint := strings.TrimSpace(preferenceHint); hint != "" {
		sys = hint + "\n\n" + sys
	}
	return sys
}

// Flat is the single-shot prompt of the lightweight path: no history, no memories.
func (p *PromptBuilder) Flat(text string, evidence []core.EvidenceItem) []core.Message {
	return []core.Message{
		{Role: core.RoleSystem, Content: withContext(p.System(""), nil, evidence)},
		{Role: core.RoleUser, Content: text},
	}
}

func (p *PromptBuilder) Full(text string, history []core.Message, memories []core.MemoryRecord, evidence []core.EvidenceItem, preferenceHint string) []core.Message {
	msgs := make([]core.Message, 0, len(history)+2)
	msgs = append(msgs, core.Message{Role: core.RoleSystem, Content: withContext(p.System(preferenceHint), memories, evidence)})
	for _, m := range history {
		if m.Role != core.RoleUser && m.Role != core.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, core.Message{Role: core.RoleUser, Content: text})
}

// withContext appends the memory and evidence blocks to the system prompt.
func withContext(sys string, memories []core.MemoryRecord, evidence []core.EvidenceItem) string {
	var sb strings.Builder
	sb.WriteString(sys)
	if block := memory.FormatBlock(memories); block != "" {
		sb.WriteString("\n\n")
		sb.WriteString(block)
	}
	if block := citation.EvidenceBlock(evidence); block != "" {
		sb.WriteString("\n\n")
		sb.WriteString(block)
	}
	return sb.String()
}
