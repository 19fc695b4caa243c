package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/sandevgo/factbot/internal/core"
)

type MemoryManager interface {
	List(ctx context.Context, uid string, limit int) ([]core.MemoryRecord, error)
	Forget(ctx context.Context, uid, id string) error
}

const defaultListed = 10

type MemoriesCommand struct {
	memories  MemoryManager
	formatter *ResponseFormatter
}

func NewMemoriesCommand(memories MemoryManager) *MemoriesCommand {
	return &MemoriesCommand{
		memories:  memories,
		formatter: NewResponseFormatter(),
	}
}

func (c *MemoriesCommand) Name() string {
	return "memories"
}

func (c *MemoriesCommand) Description() string {
	return "List what the bot remembers about you"
}

func (c *MemoriesCommand) Execute(ctx context.Context, uid string, args []string) (string, error) {
	limit := defaultListed
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return c.formatter.Usage("/memories [count]"), nil
		}
		limit = n
	}

	records, err := c.memories.List(ctx, uid, limit)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Memories"),
			"Nothing remembered yet.\n",
			c.formatter.Tip("tell me things like \"my name is ...\" or \"I prefer ...\""),
		), nil
	}

	items := lo.Map(records, func(r core.MemoryRecord, _ int) string {
		return fmt.Sprintf("%s `%s` (%s)", r.Content, r.ID, r.Kind)
	})
	return c.formatter.Combine(
		c.formatter.Info("Memories"),
		c.formatter.List(items),
		c.formatter.Tip("remove one with /forget <id>"),
	), nil
}

type ForgetCommand struct {
	memories  MemoryManager
	formatter *ResponseFormatter
}

func NewForgetCommand(memories MemoryManager) *ForgetCommand {
	return &ForgetCommand{
		memories:  memories,
		formatter: NewResponseFormatter(),
	}
}

func (c *ForgetCommand) Name() string {
	return "forget"
}

func (c *ForgetCommand) Description() string {
	return "Forget a memory by id"
}

func (c *ForgetCommand) Execute(ctx context.Context, uid string, args []string) (string, error) {
	if len(args) != 1 {
		return c.formatter.Usage("/forget <id>"), nil
	}
	if err := c.memories.Forget(ctx, uid, args[0]); err != nil {
		return "", err
	}
	return c.formatter.Success("Memory forgotten"), nil
}
