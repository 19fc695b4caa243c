package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReader struct {
	plan  core.Plan
	err   error
	calls int
}

func (c *countingReader) Account(ctx context.Context, uid string) (core.QuotaAccount, error) {
	c.calls++
	if c.err != nil {
		return core.QuotaAccount{}, c.err
	}
	return core.QuotaAccount{UID: uid, Plan: c.plan}, nil
}

func TestResolvePlan_Caches(t *testing.T) {
	reader := &countingReader{plan: core.PlanPro}
	r, err := NewResolver(reader, time.Minute, 2)
	require.NoError(t, err)
	defer r.Shutdown(context.Background())

	plan, err := r.ResolvePlan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, core.PlanPro, plan)
	r.cache.Wait()

	plan, err = r.ResolvePlan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, core.PlanPro, plan)
	assert.Equal(t, 1, reader.calls)

	r.Forget("u1")
	reader.plan = core.PlanEnterprise
	plan, _ = r.ResolvePlan(context.Background(), "u1")
	assert.Equal(t, core.PlanEnterprise, plan)
}

func TestResolvePlan_DefaultsToFree(t *testing.T) {
	reader := &countingReader{err: errors.New("timeout")}
	r, err := NewResolver(reader, time.Minute, 3)
	require.NoError(t, err)
	defer r.Shutdown(context.Background())

	plan, err := r.ResolvePlan(context.Background(), "u1")
	assert.Equal(t, core.PlanFree, plan)
	var transient *core.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, "identity", transient.Dependency)
	assert.Equal(t, 3, reader.calls)
}

func TestResolvePlan_AnonymousSkipsLookup(t *testing.T) {
	reader := &countingReader{plan: core.PlanPro}
	r, err := NewResolver(reader, time.Minute, 1)
	require.NoError(t, err)
	defer r.Shutdown(context.Background())

	for _, uid := range []string{"", core.AnonymousUID} {
		plan, err := r.ResolvePlan(context.Background(), uid)
		require.NoError(t, err)
		assert.Equal(t, core.PlanFree, plan)
	}
	assert.Zero(t, reader.calls)
}

func TestResolvePlan_UnknownPlanIsFree(t *testing.T) {
	r, err := NewResolver(&countingReader{plan: "platinum"}, 0, 1)
	require.NoError(t, err)
	defer r.Shutdown(context.Background())

	plan, err := r.ResolvePlan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, core.PlanFree, plan)
}
