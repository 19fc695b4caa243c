package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sandevgo/factbot/internal/core"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// QuotaStore keeps one hash per account. Writes run inside WATCH/MULTI so a
// concurrent change to the hash aborts the transaction.
type QuotaStore struct {
	rdb    *goredis.Client
	prefix string
}

var errVersionMismatch = errors.New("quota version mismatch")

func NewQuotaStore(ctx context.Context, opts Options) (*QuotaStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "factbot:"
	}
	return &QuotaStore{rdb: rdb, prefix: prefix}, nil
}

func (s *QuotaStore) key(uid string) string {
	return s.prefix + "quota:" + uid
}

func (s *QuotaStore) Account(ctx context.Context, uid string) (core.QuotaAccount, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(uid)).Result()
	if err != nil {
		return core.QuotaAccount{}, fmt.Errorf("failed to load quota account: %w", err)
	}
	return decodeAccount(uid, fields)
}

func (s *QuotaStore) CompareAndSwap(ctx context.Context, expected int64, next core.QuotaAccount) (bool, error) {
	key := s.key(next.UID)

	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		version, err := tx.HGet(ctx, key, "version").Int64()
		if errors.Is(err, goredis.Nil) {
			version = 0
		} else if err != nil {
			return err
		}
		if version != expected {
			return errVersionMismatch
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeAccount(next))
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, goredis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("failed to write quota account: %w", err)
	}
}

func (s *QuotaStore) SetPlan(ctx context.Context, uid string, plan core.Plan) error {
	key := s.key(uid)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, "plan", string(plan))
		pipe.HIncrBy(ctx, key, "version", 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return nil
}

func (s *QuotaStore) Start(ctx context.Context) error {
	return nil
}

func (s *QuotaStore) Shutdown(ctx context.Context) error {
	return s.rdb.Close()
}

func encodeAccount(acc core.QuotaAccount) map[string]any {
	return map[string]any{
		"plan":         string(acc.Plan),
		"daily_used":   acc.DailyUsed,
		"monthly_used": acc.MonthlyUsed,
		"day_key":      acc.DayKey,
		"month_key":    acc.MonthKey,
		"version":      acc.Version,
	}
}

func decodeAccount(uid string, fields map[string]string) (core.QuotaAccount, error) {
	acc := core.QuotaAccount{
		UID:      uid,
		Plan:     core.ParsePlan(fields["plan"]),
		DayKey:   fields["day_key"],
		MonthKey: fields["month_key"],
	}

	var err error
	if acc.DailyUsed, err = atoi(fields["daily_used"]); err != nil {
		return core.QuotaAccount{}, fmt.Errorf("daily_used: %w", err)
	}
	if acc.MonthlyUsed, err = atoi(fields["monthly_used"]); err != nil {
		return core.QuotaAccount{}, fmt.Errorf("monthly_used: %w", err)
	}
	if v := fields["version"]; v != "" {
		if acc.Version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return core.QuotaAccount{}, fmt.Errorf("version: %w", err)
		}
	}
	return acc, nil
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
