package state

import (
	"sync"

	"github.com/sandevgo/factbot/internal/core"
)

// Conversations keeps the tail of each chat so follow-up questions have
// context. Nothing is persisted.
type Conversations struct {
	mu    sync.Mutex
	max   int
	byUID map[string][]core.Message
}

func NewConversations(max int) *Conversations {
	if max <= 0 {
		max = 6
	}
	return &Conversations{max: max, byUID: make(map[string][]core.Message)}
}

func (c *Conversations) History(uid string) []core.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.byUID[uid]
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (c *Conversations) Append(uid string, msgs ...core.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := append(c.byUID[uid], msgs...)
	if len(all) > c.max {
		all = append([]core.Message(nil), all[len(all)-c.max:]...)
	}
	c.byUID[uid] = all
}

func (c *Conversations) Reset(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byUID, uid)
}
