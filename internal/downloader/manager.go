package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"edopro-pics/internal/catalog"
	"edopro-pics/internal/domain"
	"edopro-pics/internal/imagefile"
	"edopro-pics/internal/picsdir"
	"edopro-pics/internal/report"
	"edopro-pics/internal/service"
)

// Manager coordinates download runs, progress tracking, and run reporting.
// One run is active at most; control operations act on the current run.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	StartRun(opts RunOptions) error
	Pause()
	Resume()
	Cancel()
	Status() domain.StatusSnapshot
	Preview(ctx context.Context, opts RunOptions) (*domain.RunPreview, error)
}

type Config struct {
	Catalog   *catalog.Client
	Reports   *report.Writer
	Runs      service.RunService
	UserAgent string
	Logger    *logrus.Logger
}

type manager struct {
	cfg        Config
	ctx        context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	state     *runState
	runCancel context.CancelFunc
}

func NewManager(cfg Config) Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "EDOPro-HD-Downloader/3.0"
	}
	return &manager{cfg: cfg}
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return errors.New("manager already started")
	}
	m.ctx, m.cancelBase = context.WithCancel(ctx)
	m.cfg.Logger.Info("download manager started")
	return nil
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancelBase
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("download manager stopped")
}

// StartRun begins a new run unless one is already active.
func (m *manager) StartRun(opts RunOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return errors.New("manager not started")
	}
	if m.state != nil && m.state.isRunning() {
		return domain.ErrAlreadyRunning
	}

	opts = opts.Normalized()
	st := newRunState()
	st.begin()
	runCtx, cancel := context.WithCancel(m.ctx)
	m.state = st
	m.runCancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.run(runCtx, st, opts)
	}()
	return nil
}

func (m *manager) Pause() {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st == nil || !st.isRunning() || st.isPaused() {
		return
	}
	st.setPaused(true)
	st.addLog(domain.LogInfo, "Download paused")
}

func (m *manager) Resume() {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st == nil || !st.isPaused() {
		return
	}
	st.setPaused(false)
	st.addLog(domain.LogInfo, "Download resumed")
}

// Cancel is cooperative: it stops new dispatches immediately and lets in-flight
// attempts notice the signal at their next checkpoint.
func (m *manager) Cancel() {
	m.mu.Lock()
	st := m.state
	cancel := m.runCancel
	m.mu.Unlock()
	if st == nil || !st.isRunning() || st.cancelRequested() {
		return
	}
	st.requestCancel()
	st.addLog(domain.LogWarning, "Cancellation requested, stopping new downloads...")
	if cancel != nil {
		cancel()
	}
}

func (m *manager) Status() domain.StatusSnapshot {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st == nil {
		return domain.StatusSnapshot{Logs: []domain.LogEntry{}}
	}
	return st.snapshot()
}

// Preview runs task derivation and filtering without downloading anything.
func (m *manager) Preview(ctx context.Context, opts RunOptions) (*domain.RunPreview, error) {
	opts = opts.Normalized()
	if opts.Force {
		opts.ValidateExisting = false
	}

	info := picsdir.Analyze(opts.PicsDir)
	if info.SuggestedPath != "" {
		info = picsdir.Analyze(info.SuggestedPath)
	}
	if !info.Exists || !info.IsPicsDir {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPicsDir, opts.PicsDir)
	}

	entries, err := m.cfg.Catalog.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	filtered := catalog.FilterEntries(entries, opts.TypeFilter, opts.SetFilter)
	tasks := catalog.BuildTasks(filtered)
	toDownload := catalog.FilterExisting(tasks, info.Path, opts.OnlyMissing, opts.ValidateExisting)

	return &domain.RunPreview{
		TotalCards: len(filtered),
		TotalTasks: len(tasks),
		ToDownload: len(toDownload),
	}, nil
}

func (m *manager) run(ctx context.Context, st *runState, opts RunOptions) {
	defer st.finish()
	logger := m.cfg.Logger

	st.addLog(domain.LogInfo, "Starting downloader...")

	picsDir, err := m.resolvePicsDir(st, opts.PicsDir)
	if err != nil {
		st.addLog(domain.LogError, err.Error())
		logger.Errorf("resolve pics dir: %v", err)
		return
	}
	st.addLog(domain.LogInfo, "Output directory: "+picsDir)
	if _, err := os.Stat(filepath.Join(picsDir, domain.FieldSubfolder)); err != nil {
		st.addLog(domain.LogWarning, "Field folder not found (pics/field); it will be created on demand")
	}

	st.addLog(domain.LogInfo, "Connecting to the card catalog API...")
	entries, err := m.cfg.Catalog.Fetch(ctx)
	if err != nil {
		st.setAPIError(err.Error())
		st.addLog(domain.LogError, "Catalog error: "+err.Error())
		logger.Errorf("fetch catalog: %v", err)
		return
	}
	st.addLog(domain.LogSuccess, fmt.Sprintf("Received %d cards from the catalog", len(entries)))

	st.addLog(domain.LogInfo, "Preparing download list...")
	filtered := catalog.FilterEntries(entries, opts.TypeFilter, opts.SetFilter)
	tasks := catalog.BuildTasks(filtered)
	before := len(tasks)
	tasks = catalog.FilterExisting(tasks, picsDir, opts.OnlyMissing, opts.ValidateExisting)
	if dropped := before - len(tasks); dropped > 0 {
		st.addLog(domain.LogInfo, fmt.Sprintf("Filtered %d existing images", dropped))
	}

	st.setTotal(len(tasks))
	if len(tasks) == 0 {
		st.addLog(domain.LogSuccess, "All images already downloaded")
		return
	}

	st.addLog(domain.LogSuccess, fmt.Sprintf("Prepared %d images for download", len(tasks)))
	st.addLog(domain.LogInfo, fmt.Sprintf("Configuration: %d parallel downloads, %d retries, %ds timeout",
		opts.Concurrency, opts.MaxRetries, opts.TimeoutSeconds))
	if opts.Force {
		st.addLog(domain.LogInfo, "Mode: force replace")
	} else {
		st.addLog(domain.LogInfo, "Mode: skip existing")
	}
	if opts.MaxKBps > 0 {
		st.addLog(domain.LogInfo, fmt.Sprintf("Rate limit: %d KB/s per download", opts.MaxKBps))
	}
	if opts.ValidateExisting {
		st.addLog(domain.LogInfo, "Validate existing: enabled")
	}

	f := newFetcher(m.cfg.UserAgent, fetchConfig{
		timeout:    time.Duration(opts.TimeoutSeconds) * time.Second,
		maxRetries: opts.MaxRetries,
		maxKBps:    opts.MaxKBps,
	}, st.isPaused)

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	for i := range tasks {
		task := tasks[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				// cancelled before dispatch; not an error, not a skip
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
				m.processTask(ctx, st, f, picsDir, task, opts, len(tasks))
			}
		}()
	}
	wg.Wait()

	m.finalize(st, picsDir)
}

func (m *manager) resolvePicsDir(st *runState, path string) (string, error) {
	info := picsdir.Analyze(path)
	if info.SuggestedPath != "" {
		st.addLog(domain.LogInfo, "Selected folder contains 'pics'. Using: "+info.SuggestedPath)
		info = picsdir.Analyze(info.SuggestedPath)
	}
	if !info.Exists || !info.IsPicsDir {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidPicsDir, path)
	}
	return info.Path, nil
}

func (m *manager) processTask(ctx context.Context, st *runState, f *fetcher, picsDir string, task domain.DownloadTask, opts RunOptions, total int) {
	defer func() {
		if r := recover(); r != nil {
			m.taskFailed(st, task, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	if ctx.Err() != nil {
		return
	}

	targetDir := picsDir
	if task.Subfolder != "" {
		targetDir = filepath.Join(picsDir, task.Subfolder)
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			m.taskFailed(st, task, fmt.Sprintf("create %s folder: %v", task.Subfolder, err))
			return
		}
	}
	outPath := filepath.Join(targetDir, task.Filename())

	if !opts.Force {
		if _, err := os.Stat(outPath); err == nil {
			if !opts.ValidateExisting || imagefile.IsValidJPEG(outPath) {
				if n := st.markSkipped(); n%100 == 0 {
					st.addLog(domain.LogInfo, fmt.Sprintf("Skipped: %d", n))
				}
				return
			}
		}
	}

	err := f.Fetch(ctx, task.URL, outPath)
	switch {
	case err == nil:
		if n := st.markProcessed(); n < 10 || n%50 == 0 {
			st.addLog(domain.LogSuccess, fmt.Sprintf("Downloaded: %d/%d", n, total))
		}
	case errors.Is(err, domain.ErrCancelled):
		// terminal for the task, never counted as an error
	default:
		m.taskFailed(st, task, err.Error())
	}
}

func (m *manager) taskFailed(st *runState, task domain.DownloadTask, msg string) {
	st.recordError(domain.ErrorDetail{
		ImageID: task.ImageID,
		Name:    task.Name,
		URL:     task.URL,
		Error:   msg,
	})
	st.addLog(domain.LogError, fmt.Sprintf("Error in %s (ID %d): %s", task.Name, task.ImageID, msg))
	m.cfg.Logger.WithField("image_id", task.ImageID).Error(msg)
}

func (m *manager) finalize(st *runState, picsDir string) {
	cancelled := st.cancelRequested()
	stats := st.stats()

	if cancelled {
		st.addLog(domain.LogWarning, "DOWNLOAD CANCELLED")
	} else {
		st.addLog(domain.LogSuccess, "DOWNLOAD COMPLETED")
	}
	st.addLog(domain.LogInfo, fmt.Sprintf("Total: %d | Downloaded: %d | Skipped: %d | Errors: %d",
		stats.Total, stats.Downloaded, stats.Skipped, stats.Errors))
	st.addLog(domain.LogInfo, fmt.Sprintf("Elapsed: %.1fs", stats.ElapsedSeconds))
	if stats.Errors > 0 {
		st.addLog(domain.LogWarning, fmt.Sprintf("%d errors occurred; see the report for details", stats.Errors))
	}

	rep := domain.RunReport{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Cancelled: cancelled,
		Stats:     stats,
		Errors:    st.errorDetailsCopy(),
	}

	paths, err := m.cfg.Reports.Write(rep)
	if err != nil {
		st.addLog(domain.LogError, "Report error: "+err.Error())
		m.cfg.Logger.Errorf("write report: %v", err)
	} else {
		st.setReport(paths)
		st.addLog(domain.LogInfo, "Report written: "+paths.JSON)
	}

	if m.cfg.Runs != nil {
		// the run context may already be cancelled; persistence gets its own
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.cfg.Runs.RecordRun(persistCtx, rep, paths); err != nil {
			m.cfg.Logger.Warnf("persist run: %v", err)
		}
		if err := m.cfg.Runs.RememberPicsPath(persistCtx, picsDir); err != nil {
			m.cfg.Logger.Warnf("remember pics path: %v", err)
		}
	}

	m.cfg.Logger.WithField("run_id", rep.RunID).Infof(
		"run finished: total=%d downloaded=%d skipped=%d errors=%d cancelled=%t",
		stats.Total, stats.Downloaded, stats.Skipped, stats.Errors, cancelled)
}

var _ Manager = (*manager)(nil)
