package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sandevgo/factbot/internal/core"
)

const anthropicMaxTokens = 4096

type Anthropic struct {
	client *anthropic.Client
}

func NewAnthropic(apiKey string, timeout time.Duration, opts ...option.RequestOption) *Anthropic {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}, opts...)

	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client}
}

// Complete sends system messages as the system prompt and the rest as turns.
// The "anthropic/" prefix used by aggregators is stripped from modelID.
func (a *Anthropic) Complete(ctx context.Context, history []core.Message, modelID string) (core.Completion, error) {
	var (
		system   []anthropic.TextBlockParam
		messages []anthropic.MessageParam
	)
	for _, m := range history {
		switch m.Role {
		case core.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(strings.TrimPrefix(modelID, "anthropic/")),
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return core.Completion{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return core.Completion{}, fmt.Errorf("empty completion")
	}

	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return core.Completion{
		Content: text.String(),
		Usage: &core.TokenUsage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}, nil
}
