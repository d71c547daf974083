package downloader

import (
	"sync"
	"sync/atomic"
	"time"

	"edopro-pics/internal/domain"
)

const (
	maxLogEntries    = 100
	snapshotLogLines = 20
)

// runState is the single object mutated concurrently during a run. Counters,
// logs, and error details are guarded by one mutex; the cancel and pause
// signals are plain atomics so workers can poll them without contending with
// counter updates. Workers never hold the lock across network I/O.
type runState struct {
	mu           sync.Mutex
	started      bool
	running      bool
	startedAt    time.Time
	finishedAt   time.Time
	total        int
	processed    int
	skipped      int
	errors       int
	logs         []domain.LogEntry
	errorDetails []domain.ErrorDetail
	apiError     string
	report       *domain.ReportPaths

	cancelled atomic.Bool
	paused    atomic.Bool
}

func newRunState() *runState {
	return &runState{}
}

func (s *runState) begin() {
	s.mu.Lock()
	s.started = true
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()
}

// finish freezes the run; it is the single authoritative "done" transition.
func (s *runState) finish() {
	s.mu.Lock()
	s.running = false
	s.finishedAt = time.Now()
	s.mu.Unlock()
}

func (s *runState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *runState) setTotal(n int) {
	s.mu.Lock()
	s.total = n
	s.mu.Unlock()
}

func (s *runState) addLog(level domain.LogLevel, message string) {
	s.mu.Lock()
	s.logs = append(s.logs, domain.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[len(s.logs)-maxLogEntries:]
	}
	s.mu.Unlock()
}

// markProcessed returns the new count so callers can log milestones.
func (s *runState) markProcessed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	return s.processed
}

func (s *runState) markSkipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
	return s.skipped
}

func (s *runState) recordError(detail domain.ErrorDetail) {
	s.mu.Lock()
	s.errors++
	s.errorDetails = append(s.errorDetails, detail)
	s.mu.Unlock()
}

func (s *runState) setAPIError(msg string) {
	s.mu.Lock()
	s.apiError = msg
	s.mu.Unlock()
}

func (s *runState) setReport(paths *domain.ReportPaths) {
	s.mu.Lock()
	s.report = paths
	s.mu.Unlock()
}

func (s *runState) stats() domain.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.RunStats{
		Total:          s.total,
		Downloaded:     s.processed,
		Skipped:        s.skipped,
		Errors:         s.errors,
		ElapsedSeconds: s.elapsedLocked(),
	}
}

func (s *runState) errorDetailsCopy() []domain.ErrorDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ErrorDetail, len(s.errorDetails))
	copy(out, s.errorDetails)
	return out
}

func (s *runState) elapsedLocked() float64 {
	if !s.started {
		return 0
	}
	if !s.finishedAt.IsZero() {
		return s.finishedAt.Sub(s.startedAt).Seconds()
	}
	return time.Since(s.startedAt).Seconds()
}

func (s *runState) requestCancel() {
	s.cancelled.Store(true)
}

func (s *runState) cancelRequested() bool {
	return s.cancelled.Load()
}

func (s *runState) setPaused(paused bool) {
	s.paused.Store(paused)
}

func (s *runState) isPaused() bool {
	return s.paused.Load()
}

// snapshot copies the state for the control plane, trimming logs to the most
// recent lines.
func (s *runState) snapshot() domain.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := s.logs
	if len(logs) > snapshotLogLines {
		logs = logs[len(logs)-snapshotLogLines:]
	}
	out := make([]domain.LogEntry, len(logs))
	copy(out, logs)

	return domain.StatusSnapshot{
		Running:        s.running,
		Finished:       s.started && !s.running,
		Paused:         s.paused.Load(),
		Total:          s.total,
		Processed:      s.processed,
		Skipped:        s.skipped,
		Errors:         s.errors,
		APIError:       s.apiError,
		Report:         s.report,
		Logs:           out,
		ElapsedSeconds: s.elapsedLocked(),
	}
}
