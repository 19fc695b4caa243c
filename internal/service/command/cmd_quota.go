package command

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

type QuotaReader interface {
	Remaining(ctx context.Context, uid string, loc *time.Location) (core.Remaining, error)
}

type QuotaCommand struct {
	quota     QuotaReader
	formatter *ResponseFormatter
}

func NewQuotaCommand(quota QuotaReader) *QuotaCommand {
	return &QuotaCommand{
		quota:     quota,
		formatter: NewResponseFormatter(),
	}
}

func (c *QuotaCommand) Name() string {
	return "quota"
}

func (c *QuotaCommand) Description() string {
	return "Show remaining credits for today and this month"
}

// Execute takes an optional IANA timezone, UTC otherwise.
func (c *QuotaCommand) Execute(ctx context.Context, uid string, args []string) (string, error) {
	loc := time.UTC
	if len(args) > 0 {
		l, err := time.LoadLocation(args[0])
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", args[0])
		}
		loc = l
	}

	rem, err := c.quota.Remaining(ctx, uid, loc)
	if err != nil {
		return "", err
	}

	return c.formatter.Combine(
		c.formatter.Info("Quota"),
		c.formatter.Label("Plan", string(rem.Plan)),
		c.formatter.Label("Today", c.formatter.Credits(rem.Daily)),
		c.formatter.Label("This month", c.formatter.Credits(rem.Monthly)),
	), nil
}
