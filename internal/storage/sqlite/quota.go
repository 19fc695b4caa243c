package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sandevgo/factbot/internal/core"
)

// QuotaRepo stores quota accounts. Writes are conditional on the version
// column so concurrent deductions for one uid serialize without locks.
type QuotaRepo struct {
	db *sql.DB
}

func NewQuotaRepo(db *sql.DB) *QuotaRepo {
	return &QuotaRepo{db: db}
}

func (r *QuotaRepo) Account(ctx context.Context, uid string) (core.QuotaAccount, error) {
	acc := core.QuotaAccount{UID: uid}
	var plan string

	err := r.db.QueryRowContext(ctx,
		`SELECT plan, daily_used, monthly_used, day_key, month_key, version FROM quota_accounts WHERE uid = ?`,
		uid,
	).Scan(&plan, &acc.DailyUsed, &acc.MonthlyUsed, &acc.DayKey, &acc.MonthKey, &acc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		acc.Plan = core.PlanFree
		return acc, nil
	}
	if err != nil {
		return core.QuotaAccount{}, fmt.Errorf("failed to load quota account: %w", err)
	}

	acc.Plan = core.ParsePlan(plan)
	return acc, nil
}

// CompareAndSwap writes next if the stored version equals expected. Version 0
// means the row must not exist yet.
func (r *QuotaRepo) CompareAndSwap(ctx context.Context, expected int64, next core.QuotaAccount) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = r.db.ExecContext(ctx, `
			INSERT INTO quota_accounts (uid, plan, daily_used, monthly_used, day_key, month_key, version)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(uid) DO NOTHING`,
			next.UID, string(next.Plan), next.DailyUsed, next.MonthlyUsed, next.DayKey, next.MonthKey, next.Version,
		)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE quota_accounts
			SET daily_used = ?, monthly_used = ?, day_key = ?, month_key = ?, version = ?, updated_at = CURRENT_TIMESTAMP
			WHERE uid = ? AND version = ?`,
			next.DailyUsed, next.MonthlyUsed, next.DayKey, next.MonthKey, next.Version, next.UID, expected,
		)
	}
	if err != nil {
		return false, fmt.Errorf("failed to write quota account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetPlan changes the plan and bumps the version so in-flight deductions retry.
func (r *QuotaRepo) SetPlan(ctx context.Context, uid string, plan core.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quota_accounts (uid, plan, version) VALUES (?, ?, 1)
		ON CONFLICT(uid) DO UPDATE SET plan = excluded.plan, version = version + 1, updated_at = CURRENT_TIMESTAMP`,
		uid, string(plan),
	)
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return nil
}
