package domain

import (
	"errors"
	"fmt"
	"time"
)

// FieldSubfolder is where cropped field-spell art is stored, relative to the
// pics root. Field crops are named after the card id rather than the image id
// so they never collide with regular art in the flat pics directory.
const FieldSubfolder = "field"

// DownloadTask is one concrete image download derived from a catalog entry.
type DownloadTask struct {
	ParentID  int64  `json:"card_id"`
	Name      string `json:"name"`
	ImageID   int64  `json:"image_id"`
	URL       string `json:"url"`
	Subfolder string `json:"subfolder"`
}

// Filename is the target filename under the task's subfolder.
func (t DownloadTask) Filename() string {
	return fmt.Sprintf("%d.jpg", t.ImageID)
}

// LogLevel tags a run log line for the UI.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one line of the run log ring buffer.
type LogEntry struct {
	Level     LogLevel  `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail records a failed task with enough context to retry it by hand.
type ErrorDetail struct {
	ImageID int64  `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Error   string `json:"error"`
}

// RunStats are the final counters of a run.
type RunStats struct {
	Total          int     `json:"total"`
	Downloaded     int     `json:"downloaded"`
	Skipped        int     `json:"skipped"`
	Errors         int     `json:"errors"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ReportPaths points at the two artifacts written for a completed run.
type ReportPaths struct {
	JSON     string `json:"json"`
	Markdown string `json:"md"`
}

// RunReport is the immutable summary persisted when a run finishes or is
// cancelled.
type RunReport struct {
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	Cancelled bool          `json:"cancelled"`
	Stats     RunStats      `json:"stats"`
	Errors    []ErrorDetail `json:"errors"`
}

// RunRecord is a persisted run history row.
type RunRecord struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	Cancelled      bool          `json:"cancelled"`
	Stats          RunStats      `json:"stats"`
	ReportJSON     string        `json:"report_json"`
	ReportMarkdown string        `json:"report_md"`
	Errors         []ErrorDetail `json:"errors"`
}

// StatusSnapshot is the point-in-time view polled by the control plane.
type StatusSnapshot struct {
	Running        bool          `json:"running"`
	Finished       bool          `json:"finished"`
	Paused         bool          `json:"paused"`
	Total          int           `json:"total"`
	Processed      int           `json:"processed"`
	Skipped        int           `json:"skipped"`
	Errors         int           `json:"errors"`
	APIError       string        `json:"api_error,omitempty"`
	Report         *ReportPaths  `json:"report,omitempty"`
	Logs           []LogEntry    `json:"logs"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
}

// RunPreview is a dry run of task building without any downloads.
type RunPreview struct {
	TotalCards int `json:"total_cards"`
	TotalTasks int `json:"total_tasks"`
	ToDownload int `json:"to_download"`
}

var (
	// ErrAlreadyRunning rejects a start request while a run is active.
	ErrAlreadyRunning = errors.New("a download run is already active")
	// ErrCancelled marks a task ended by the global cancel signal. It is
	// terminal for the task and never counted as an error.
	ErrCancelled = errors.New("download cancelled")
	// ErrUnsupportedContentType flags a response that is not a JPEG. Retryable.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrCorruptImage flags a download that failed integrity validation. Retryable.
	ErrCorruptImage = errors.New("downloaded file is not a valid JPEG")
	// ErrInvalidPicsDir aborts a run before any network I/O.
	ErrInvalidPicsDir = errors.New("invalid pics directory")
	// ErrEmptyCatalog means the catalog API returned no cards.
	ErrEmptyCatalog = errors.New("catalog contained no cards")
)
