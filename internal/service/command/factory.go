package command

import (
	"github.com/sandevgo/factbot/internal/core"
)

func NewCommands(
	quota QuotaReader,
	memories MemoryManager,
	models ModelChanger,
	sources SourceLister,
) []core.Command {
	return []core.Command{
		NewQuotaCommand(quota),
		NewMemoriesCommand(memories),
		NewForgetCommand(memories),
		NewModelCommand(models),
		NewSourcesCommand(sources),
	}
}
