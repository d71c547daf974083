package repository

import (
	"context"

	"edopro-pics/internal/domain"
)

// RunRepository persists completed run summaries.
type RunRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, record *domain.RunRecord) error
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// SettingRepository stores small key/value settings, such as the last valid
// pics path.
type SettingRepository interface {
	Init(ctx context.Context) error
	Set(ctx context.Context, key, value string) error
	// Get returns "" without error when the key is absent.
	Get(ctx context.Context, key string) (string, error)
}
