// Package report persists the per-run summary as two artifacts: structured
// JSON for tooling and a Markdown digest for humans.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"edopro-pics/internal/domain"
)

const timestampLayout = "20060102_150405"

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write renders both artifacts for a completed run. Artifacts are written once
// and never mutated.
func (w *Writer) Write(rep domain.RunReport) (*domain.ReportPaths, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	ts := rep.Timestamp.Format(timestampLayout)
	jsonPath := filepath.Join(w.dir, fmt.Sprintf("pics_report_%s.json", ts))
	mdPath := filepath.Join(w.dir, fmt.Sprintf("pics_report_%s.md", ts))

	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write json report: %w", err)
	}

	if err := os.WriteFile(mdPath, []byte(renderMarkdown(rep)), 0o644); err != nil {
		return nil, fmt.Errorf("write markdown report: %w", err)
	}

	return &domain.ReportPaths{JSON: jsonPath, Markdown: mdPath}, nil
}

func renderMarkdown(rep domain.RunReport) string {
	var b strings.Builder
	b.WriteString("# EDOPro HD Pics Download Report\n\n")
	fmt.Fprintf(&b, "- Run: %s\n", rep.RunID)
	fmt.Fprintf(&b, "- Timestamp: %s\n", rep.Timestamp.Format(timestampLayout))
	fmt.Fprintf(&b, "- Cancelled: %t\n", rep.Cancelled)
	fmt.Fprintf(&b, "- Total: %d\n", rep.Stats.Total)
	fmt.Fprintf(&b, "- Downloaded: %d\n", rep.Stats.Downloaded)
	fmt.Fprintf(&b, "- Skipped: %d\n", rep.Stats.Skipped)
	fmt.Fprintf(&b, "- Errors: %d\n", rep.Stats.Errors)
	fmt.Fprintf(&b, "- Elapsed: %s\n", formatElapsed(rep.Stats.ElapsedSeconds))

	if len(rep.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(&b, "- ID: %d | %s | %s\n", e.ImageID, e.Name, e.Error)
		}
	}
	return b.String()
}

func formatElapsed(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", int(seconds))
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
	default:
		return fmt.Sprintf("%.1fh", seconds/3600)
	}
}
