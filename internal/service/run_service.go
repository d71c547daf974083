package service

import (
	"context"

	"edopro-pics/internal/domain"
	"edopro-pics/internal/repository"
)

const lastPicsPathKey = "last_valid_path"

// RunService persists run history and the remembered pics path on behalf of
// the download coordinator and the control plane.
type RunService interface {
	RecordRun(ctx context.Context, report domain.RunReport, paths *domain.ReportPaths) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	RememberPicsPath(ctx context.Context, path string) error
	LastPicsPath(ctx context.Context) (string, error)
}

type runService struct {
	runs     repository.RunRepository
	settings repository.SettingRepository
}

func NewRunService(runs repository.RunRepository, settings repository.SettingRepository) RunService {
	return &runService{
		runs:     runs,
		settings: settings,
	}
}

func (s *runService) RecordRun(ctx context.Context, report domain.RunReport, paths *domain.ReportPaths) error {
	record := &domain.RunRecord{
		ID:        report.RunID,
		CreatedAt: report.Timestamp,
		Cancelled: report.Cancelled,
		Stats:     report.Stats,
		Errors:    report.Errors,
	}
	if paths != nil {
		record.ReportJSON = paths.JSON
		record.ReportMarkdown = paths.Markdown
	}
	return s.runs.Create(ctx, record)
}

func (s *runService) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return s.runs.List(ctx, limit)
}

func (s *runService) RememberPicsPath(ctx context.Context, path string) error {
	return s.settings.Set(ctx, lastPicsPathKey, path)
}

func (s *runService) LastPicsPath(ctx context.Context) (string, error) {
	return s.settings.Get(ctx, lastPicsPathKey)
}
