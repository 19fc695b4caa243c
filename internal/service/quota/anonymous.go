package quota

import (
	"time"

	"github.com/sandevgo/factbot/internal/core"
)

const (
	AnonymousLimit  = 10
	AnonymousWindow = 24 * time.Hour
	warnAfter       = 5
)

// AnonymousGate meters anonymous chats with a counter the client keeps.
// It never touches stored accounts.
type AnonymousGate struct {
	Limit  int
	Window time.Duration
}

func NewAnonymousGate() AnonymousGate {
	return AnonymousGate{Limit: AnonymousLimit, Window: AnonymousWindow}
}

// Admit counts one more chat. The returned counter is what the client should
// store, also when the limit error is returned.
func (g AnonymousGate) Admit(counter core.AnonymousCounter, now time.Time) (core.AnonymousUsage, core.AnonymousCounter, error) {
	if counter.Since.IsZero() || now.Sub(counter.Since) >= g.Window || now.Before(counter.Since) {
		counter = core.AnonymousCounter{Since: now}
	}
	counter.Count = max(0, counter.Count)

	if counter.Count >= g.Limit {
		usage := core.AnonymousUsage{
			Count:       counter.Count,
			Limit:       g.Limit,
			Remaining:   0,
			ShowWarning: true,
		}
		return usage, counter, &core.AnonymousLimitError{Counter: counter, Limit: g.Limit}
	}

	counter.Count++
	return core.AnonymousUsage{
		Count:       counter.Count,
		Limit:       g.Limit,
		Remaining:   g.Limit - counter.Count,
		ShowWarning: counter.Count >= warnAfter,
	}, counter, nil
}
