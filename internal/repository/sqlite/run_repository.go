package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"edopro-pics/internal/domain"
	"edopro-pics/internal/repository"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	cancelled INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	downloaded INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	elapsed_seconds REAL NOT NULL DEFAULT 0,
	report_json TEXT NOT NULL DEFAULT '',
	report_md TEXT NOT NULL DEFAULT '',
	error_details TEXT NOT NULL DEFAULT '[]'
);
`

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) repository.RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, record *domain.RunRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(record.Errors)
	if err != nil {
		return fmt.Errorf("encode error details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO runs (id, created_at, cancelled, total, downloaded, skipped, errors, elapsed_seconds, report_json, report_md, error_details)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CreatedAt,
		record.Cancelled,
		record.Stats.Total,
		record.Stats.Downloaded,
		record.Stats.Skipped,
		record.Stats.Errors,
		record.Stats.ElapsedSeconds,
		record.ReportJSON,
		record.ReportMarkdown,
		string(details),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, created_at, cancelled, total, downloaded, skipped, errors, elapsed_seconds, report_json, report_md, error_details
FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var (
			record  domain.RunRecord
			details string
		)
		if err := rows.Scan(
			&record.ID,
			&record.CreatedAt,
			&record.Cancelled,
			&record.Stats.Total,
			&record.Stats.Downloaded,
			&record.Stats.Skipped,
			&record.Stats.Errors,
			&record.Stats.ElapsedSeconds,
			&record.ReportJSON,
			&record.ReportMarkdown,
			&details,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &record.Errors); err != nil {
			return nil, fmt.Errorf("decode error details: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}
