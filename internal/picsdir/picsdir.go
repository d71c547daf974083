// Package picsdir resolves user-supplied output paths against the layout the
// game expects: images live in a directory named "pics". Resolution never
// silently rewrites the caller's input; when the given directory merely
// contains a pics child, the child is surfaced as a suggestion.
package picsdir

import (
	"os"
	"path/filepath"
	"strings"
)

// Info is the result of analyzing a candidate output path.
type Info struct {
	Exists        bool   `json:"exists"`
	IsPicsDir     bool   `json:"is_pics_folder"`
	Path          string `json:"path,omitempty"`
	SuggestedPath string `json:"suggested_path,omitempty"`
}

// Valid reports whether the path can be used directly or via its suggestion.
func (i Info) Valid() bool {
	return i.Exists && (i.IsPicsDir || i.SuggestedPath != "")
}

// Analyze inspects path. A directory named "pics" confirms as-is; a directory
// containing a "pics" child yields that child as SuggestedPath.
func Analyze(path string) Info {
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}
	}

	candidate, err := filepath.Abs(expandHome(path))
	if err != nil {
		return Info{Path: path}
	}

	info, err := os.Stat(candidate)
	if err != nil {
		return Info{Path: candidate}
	}

	if info.IsDir() && strings.EqualFold(filepath.Base(candidate), "pics") {
		return Info{Exists: true, IsPicsDir: true, Path: candidate}
	}

	if info.IsDir() {
		child := filepath.Join(candidate, "pics")
		if childInfo, err := os.Stat(child); err == nil && childInfo.IsDir() {
			return Info{Exists: true, Path: candidate, SuggestedPath: child}
		}
	}

	return Info{Exists: true, Path: candidate}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
