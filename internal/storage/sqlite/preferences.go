package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PreferencesRepo struct {
	db *sql.DB
}

func NewPreferencesRepo(db *sql.DB) *PreferencesRepo {
	return &PreferencesRepo{db: db}
}

// PreferenceHint returns "" when uid has no hint.
func (r *PreferencesRepo) PreferenceHint(ctx context.Context, uid string) (string, error) {
	var hint string
	err := r.db.QueryRowContext(ctx, `SELECT hint FROM preferences WHERE uid = ?`, uid).Scan(&hint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load preference hint: %w", err)
	}
	return hint, nil
}

func (r *PreferencesRepo) SetPreferenceHint(ctx context.Context, uid, hint string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (uid, hint) VALUES (?, ?)
		ON CONFLICT(uid) DO UPDATE SET hint = excluded.hint, updated_at = CURRENT_TIMESTAMP`,
		uid, hint,
	)
	if err != nil {
		return fmt.Errorf("failed to save preference hint: %w", err)
	}
	return nil
}
