package core

import "context"

type CmdRouter interface {
	Execute(ctx context.Context, uid, input string) (string, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, uid string, args []string) (string, error)
}
