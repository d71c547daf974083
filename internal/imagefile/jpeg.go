// Package imagefile provides the structural JPEG checks used to validate
// downloads and to decide which catalog tasks can be skipped.
package imagefile

import (
	"bytes"
	"os"
	"strings"
)

// MinSize is the smallest plausible card image; anything shorter is treated as
// a truncated download.
const MinSize = 1024

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// IsValidJPEG reports whether the file at path looks like a complete JPEG:
// readable, at least MinSize bytes, and carrying the start-of-image and
// end-of-image markers. It never decodes the image.
func IsValidJPEG(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() < MinSize {
		return false
	}

	head := make([]byte, 2)
	if _, err := f.ReadAt(head, 0); err != nil || !bytes.Equal(head, jpegStart) {
		return false
	}

	tail := make([]byte, 2)
	if _, err := f.ReadAt(tail, info.Size()-2); err != nil || !bytes.Equal(tail, jpegEnd) {
		return false
	}
	return true
}

// ListJPEGs returns the lowercase .jpg filenames directly inside dir. A
// missing or unreadable directory yields an empty set.
func ListJPEGs(dir string) map[string]struct{} {
	names := make(map[string]struct{})
	entries, err := os.ReadDir(dir)
	if err != nil {
		return names
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".jpg") {
			names[name] = struct{}{}
		}
	}
	return names
}
