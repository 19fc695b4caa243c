package quota

import (
	"context"
	"sync"

	"github.com/sandevgo/factbot/internal/core"
)

// MemStore is a process-local QuotaStore.
type MemStore struct {
	mu       sync.Mutex
	accounts map[string]core.QuotaAccount
}

func NewMemStore() *MemStore {
	return &MemStore{accounts: make(map[string]core.QuotaAccount)}
}

func (s *MemStore) Account(_ context.Context, uid string) (core.QuotaAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[uid]; ok {
		return acc, nil
	}
	return core.QuotaAccount{UID: uid, Plan: core.PlanFree}, nil
}

func (s *MemStore) CompareAndSwap(_ context.Context, expected int64, next core.QuotaAccount) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accounts[next.UID].Version != expected {
		return false, nil
	}
	s.accounts[next.UID] = next
	return true, nil
}

func (s *MemStore) SetPlan(_ context.Context, uid string, plan core.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[uid]
	if !ok {
		acc = core.QuotaAccount{UID: uid}
	}
	acc.Plan = plan
	acc.Version++
	s.accounts[uid] = acc
	return nil
}
