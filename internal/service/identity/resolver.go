package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
	"github.com/sandevgo/factbot/pkg/retry"
)

// AccountReader is the part of the quota store that knows a user's plan.
type AccountReader interface {
	Account(ctx context.Context, uid string) (core.QuotaAccount, error)
}

// Resolver looks up plans with a short-lived cache in front of the store.
type Resolver struct {
	accounts AccountReader
	cache    *ristretto.Cache
	ttl      time.Duration
	retrier  *retry.Retrier
}

func NewResolver(accounts AccountReader, ttl time.Duration, attempts int) (*Resolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create plan cache: %w", err)
	}

	return &Resolver{
		accounts: accounts,
		cache:    cache,
		ttl:      ttl,
		retrier:  retry.NewRetrier(retry.NewImmediateConfig(attempts)),
	}, nil
}

// ResolvePlan never fails the caller: on error it returns the free plan along
// with a *core.TransientError describing what was absorbed.
func (r *Resolver) ResolvePlan(ctx context.Context, uid string) (core.Plan, error) {
	if core.IsAnonymous(uid) {
		return core.PlanFree, nil
	}
	if v, ok := r.cache.Get(uid); ok {
		if plan, ok := v.(core.Plan); ok {
			return plan, nil
		}
	}

	plan, err := retry.Value(ctx, r.retrier, func() (core.Plan, error) {
		acc, err := r.accounts.Account(ctx, uid)
		if err != nil {
			return "", err
		}
		return core.ParsePlan(string(acc.Plan)), nil
	})
	if err != nil {
		err = &core.TransientError{Dependency: "identity", Err: err}
		log.Absorbed(ctx, "identity", err)
		return core.PlanFree, err
	}

	if r.ttl > 0 {
		r.cache.SetWithTTL(uid, plan, 1, r.ttl)
	}
	return plan, nil
}

// Forget drops a cached plan, e.g. after an upgrade.
func (r *Resolver) Forget(uid string) {
	r.cache.Del(uid)
}

func (r *Resolver) Start(ctx context.Context) error {
	return nil
}

func (r *Resolver) Shutdown(ctx context.Context) error {
	r.cache.Close()
	return nil
}
