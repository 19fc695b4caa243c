package command

import (
	"context"
	"fmt"
)

type ModelChanger interface {
	Model(uid string) string
	ChangeModel(ctx context.Context, uid, model string) error
}

type ModelCommand struct {
	models    ModelChanger
	formatter *ResponseFormatter
}

func NewModelCommand(models ModelChanger) *ModelCommand {
	return &ModelCommand{
		models:    models,
		formatter: NewResponseFormatter(),
	}
}

func (c *ModelCommand) Name() string {
	return "model"
}

func (c *ModelCommand) Description() string {
	return "Show or change current model"
}

func (c *ModelCommand) Execute(ctx context.Context, uid string, args []string) (string, error) {
	if len(args) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Current Model"),
			c.formatter.Label("Model", c.models.Model(uid)),
			c.formatter.Usage("/model [model id]"),
			c.formatter.Examples([]string{
				"/model meta-llama/llama-4-maverick",
				"/model anthropic/claude-sonnet-4",
				"/model meta-llama/Llama-3.1-8B-Instruct:cerebras",
			}),
		), nil
	}

	if err := c.models.ChangeModel(ctx, uid, args[0]); err != nil {
		return "", fmt.Errorf("failed to set model: %w", err)
	}

	return c.formatter.Success(fmt.Sprintf("Model changed to: `%s`", c.models.Model(uid))), nil
}
