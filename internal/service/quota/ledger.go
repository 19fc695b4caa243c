package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	// maxSwapAttempts bounds the optimistic loop under heavy contention for one uid.
	maxSwapAttempts = 16
)

// Ledger enforces plan limits for authenticated accounts.
type Ledger struct {
	store core.QuotaStore
	now   func() time.Time
}

func NewLedger(store core.QuotaStore) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// EnsureQuota deducts credits from the account of uid or fails with
// *core.QuotaExceededError. A rejected call never writes. Period boundaries
// are computed in loc; nil means UTC.
func (l *Ledger) EnsureQuota(ctx context.Context, uid string, credits int, loc *time.Location) error {
	if credits < 0 {
		credits = 0
	}
	logger := log.FromCtx(ctx).With().
		Str("uid", uid).
		Int("credits", credits).
		Logger()

	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		stored, err := l.store.Account(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to load quota account: %w", err)
		}

		current := l.current(stored, uid, loc)
		limits := current.Plan.Limits()
		if !admits(current, limits, credits) {
			logger.Info().
				Str("plan", string(current.Plan)).
				Int("daily_used", current.DailyUsed).
				Int("monthly_used", current.MonthlyUsed).
				Msg("quota exceeded")
			return &core.QuotaExceededError{Remaining: remainingOf(current)}
		}

		next := current
		next.DailyUsed += credits
		next.MonthlyUsed += credits
		next.Version = stored.Version + 1

		swapped, err := l.store.CompareAndSwap(ctx, stored.Version, next)
		if err != nil {
			return fmt.Errorf("failed to update quota account: %w", err)
		}
		if swapped {
			logger.Debug().
				Int("daily_used", next.DailyUsed).
				Int("monthly_used", next.MonthlyUsed).
				Msg("credits deducted")
			return nil
		}
		logger.Debug().Int("attempt", attempt).Msg("quota account changed concurrently, retrying")
	}

	return core.ErrQuotaContention
}

// Remaining reports what uid may still spend in the current periods.
func (l *Ledger) Remaining(ctx context.Context, uid string, loc *time.Location) (core.Remaining, error) {
	stored, err := l.store.Account(ctx, uid)
	if err != nil {
		return core.Remaining{}, fmt.Errorf("failed to load quota account: %w", err)
	}
	return remainingOf(l.current(stored, uid, loc)), nil
}

func (l *Ledger) SetPlan(ctx context.Context, uid string, plan core.Plan) error {
	if err := l.store.SetPlan(ctx, uid, plan); err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return nil
}

// current resets counters whose period has ended. Nothing is persisted here.
func (l *Ledger) current(acc core.QuotaAccount, uid string, loc *time.Location) core.QuotaAccount {
	if loc == nil {
		loc = time.UTC
	}
	now := l.now().In(loc)
	day, month := now.Format(dayLayout), now.Format(monthLayout)

	acc.UID = uid
	acc.Plan = core.ParsePlan(string(acc.Plan))
	if acc.DayKey != day {
		acc.DayKey = day
		acc.DailyUsed = 0
	}
	if acc.MonthKey != month {
		acc.MonthKey = month
		acc.MonthlyUsed = 0
	}
	return acc
}

// admits rejects an exhausted period even when credits is zero.
func admits(acc core.QuotaAccount, limits core.Limits, credits int) bool {
	return within(acc.DailyUsed, limits.Daily, credits) &&
		within(acc.MonthlyUsed, limits.Monthly, credits)
}

func within(used, limit, credits int) bool {
	if limit == core.Unbounded {
		return true
	}
	return used < limit && used+credits <= limit
}

func remainingOf(acc core.QuotaAccount) core.Remaining {
	limits := acc.Plan.Limits()
	return core.Remaining{
		Daily:   left(acc.DailyUsed, limits.Daily),
		Monthly: left(acc.MonthlyUsed, limits.Monthly),
		Plan:    acc.Plan,
	}
}

func left(used, limit int) int {
	if limit == core.Unbounded {
		return core.Unbounded
	}
	return max(0, limit-used)
}
