package core

import (
	"context"
	"time"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Unbounded is reported as the remaining count of a limit that does not exist.
const Unbounded = -1

type Limits struct {
	Daily   int
	Monthly int
}

func (l Limits) Unbounded() bool {
	return l.Daily == Unbounded && l.Monthly == Unbounded
}

func (p Plan) Limits() Limits {
	switch p {
	case PlanPro:
		return Limits{Daily: 200, Monthly: 2000}
	case PlanEnterprise:
		return Limits{Daily: Unbounded, Monthly: Unbounded}
	default:
		return Limits{Daily: 20, Monthly: 100}
	}
}

// ParsePlan maps anything unknown to the free plan.
func ParsePlan(s string) Plan {
	switch Plan(s) {
	case PlanPro, PlanEnterprise:
		return Plan(s)
	default:
		return PlanFree
	}
}

// QuotaAccount holds the stored counters of one authenticated user.
// DayKey and MonthKey name the period DailyUsed and MonthlyUsed belong to.
// Version is bumped on every successful write and used for compare-and-swap.
type QuotaAccount struct {
	UID         string `json:"uid"`
	Plan        Plan   `json:"plan"`
	DailyUsed   int    `json:"daily_used"`
	MonthlyUsed int    `json:"monthly_used"`
	DayKey      string `json:"day_key"`
	MonthKey    string `json:"month_key"`
	Version     int64  `json:"version"`
}

type Remaining struct {
	Daily   int  `json:"daily"`
	Monthly int  `json:"monthly"`
	Plan    Plan `json:"plan"`
}

type QuotaStore interface {
	// Account returns the stored account, or a free account with Version 0 if none exists.
	Account(ctx context.Context, uid string) (QuotaAccount, error)
	// CompareAndSwap writes next only if the stored version still equals expected.
	CompareAndSwap(ctx context.Context, expected int64, next QuotaAccount) (bool, error)
	SetPlan(ctx context.Context, uid string, plan Plan) error
}

type PlanResolver interface {
	ResolvePlan(ctx context.Context, uid string) (Plan, error)
}

// AnonymousCounter is the client-held allowance of an anonymous user.
type AnonymousCounter struct {
	Count int       `json:"count"`
	Since time.Time `json:"since"`
}

type AnonymousUsage struct {
	Count       int  `json:"anonymousChatCount"`
	Limit       int  `json:"anonymousChatLimit"`
	Remaining   int  `json:"remaining"`
	ShowWarning bool `json:"showWarning"`
}
