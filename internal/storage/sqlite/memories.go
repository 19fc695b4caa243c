package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
)

type MemoriesRepo struct {
	db *sql.DB
}

func NewMemoriesRepo(db *sql.DB) *MemoriesRepo {
	return &MemoriesRepo{db: db}
}

// ListActive returns up to limit active memories of uid, newest first.
func (r *MemoriesRepo) ListActive(ctx context.Context, uid string, limit int) ([]core.RawMemory, error) {
	query := `
		SELECT id, uid, content, kind, importance, usage_count, created_at, last_used_at, topics, tags, is_active, source
		FROM memories
		WHERE uid = ? AND is_active = 1
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []core.RawMemory
	for rows.Next() {
		var (
			m          core.RawMemory
			importance sql.NullFloat64
			usage      sql.NullInt64
			createdAt  sql.NullTime
			lastUsedAt sql.NullTime
			topics     sql.NullString
			tags       sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.UID, &m.Content, &m.Kind, &importance, &usage,
			&createdAt, &lastUsedAt, &topics, &tags, &m.IsActive, &m.Source); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}

		if importance.Valid {
			m.Importance = &importance.Float64
		}
		if usage.Valid {
			n := int(usage.Int64)
			m.UsageCount = &n
		}
		if createdAt.Valid {
			m.CreatedAt = &createdAt.Time
		}
		if lastUsedAt.Valid {
			m.LastUsedAt = &lastUsedAt.Time
		}
		// Malformed term lists are left empty, the ranker copes with that.
		m.Topics = decodeTerms(topics)
		m.Tags = decodeTerms(tags)

		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().Str("uid", uid).Int("count", len(out)).Msg("loaded memories")
	return out, nil
}

func (r *MemoriesRepo) Create(ctx context.Context, rec core.MemoryRecord) error {
	topics, err := encodeTerms(rec.Topics)
	if err != nil {
		return err
	}
	tags, err := encodeTerms(rec.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO memories (id, uid, content, content_key, kind, importance, usage_count, created_at, topics, tags, is_active, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.UID, rec.Content, strings.ToLower(strings.TrimSpace(rec.Content)), string(rec.Kind),
		rec.ImportanceScore, rec.UsageCount, rec.CreatedAt.UTC(), topics, tags, rec.IsActive, rec.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *MemoriesRepo) IncrementUsage(ctx context.Context, uid, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memories SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ? AND uid = ?`,
		at.UTC(), id, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to bump memory usage: %w", err)
	}
	return expectRow(res, id)
}

// Deactivate soft-deletes a memory. Rows are never removed.
func (r *MemoriesRepo) Deactivate(ctx context.Context, uid, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memories SET is_active = 0 WHERE id = ? AND uid = ? AND is_active = 1`,
		id, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate memory: %w", err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("memory %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func encodeTerms(terms []string) (string, error) {
	if len(terms) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(terms)
	if err != nil {
		return "", fmt.Errorf("failed to marshal terms: %w", err)
	}
	return string(b), nil
}

// decodeTerms returns nil for a missing or empty list.
func decodeTerms(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var terms []string
	if err := json.Unmarshal([]byte(s.String), &terms); err != nil || len(terms) == 0 {
		return nil
	}
	return terms
}
