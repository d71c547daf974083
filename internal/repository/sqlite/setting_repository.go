package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"edopro-pics/internal/repository"
)

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type SettingRepository struct {
	db *sql.DB
}

func NewSettingRepository(db *sql.DB) repository.SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSettingsTable); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}
