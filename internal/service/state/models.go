package state

import (
	"context"
	"strings"
	"sync"
)

// ModelSelection remembers which model each chat user picked.
// Selections live in memory and reset on restart.
type ModelSelection struct {
	mu       sync.RWMutex
	fallback string
	models   map[string]string
}

func NewModelSelection(fallback string) *ModelSelection {
	return &ModelSelection{
		fallback: fallback,
		models:   make(map[string]string),
	}
}

func (s *ModelSelection) Model(uid string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.models[uid]; ok {
		return m
	}
	return s.fallback
}

// ChangeModel sets the model of uid. An empty model restores the default.
func (s *ModelSelection) ChangeModel(_ context.Context, uid, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	model = strings.TrimSpace(model)
	if model == "" {
		delete(s.models, uid)
		return nil
	}
	s.models[uid] = model
	return nil
}
