package catalog

import (
	"path/filepath"
	"strings"

	"edopro-pics/internal/domain"
	"edopro-pics/internal/imagefile"
)

// BuildTasks derives the flat download task list from catalog entries, in
// catalog order. Every image of every entry yields one task; field spells
// additionally yield a cropped-art task named after the card id so the crop
// lands in pics/field without clashing with regular art ids.
func BuildTasks(entries []domain.CatalogEntry) []domain.DownloadTask {
	tasks := make([]domain.DownloadTask, 0, len(entries))

	for _, entry := range entries {
		for _, img := range entry.Images {
			if img.ID == 0 || img.URL == "" {
				continue
			}
			tasks = append(tasks, domain.DownloadTask{
				ParentID: entry.ID,
				Name:     entry.Name,
				ImageID:  img.ID,
				URL:      img.URL,
			})
		}

		if strings.Contains(entry.Type, "Field") && strings.Contains(entry.Type, "Spell") && len(entry.Images) > 0 {
			if cropped := entry.Images[0].CroppedURL; cropped != "" {
				tasks = append(tasks, domain.DownloadTask{
					ParentID:  entry.ID,
					Name:      entry.Name,
					ImageID:   entry.ID,
					URL:       cropped,
					Subfolder: domain.FieldSubfolder,
				})
			}
		}
	}

	return tasks
}

// FilterEntries keeps entries matching both filters. Matching is
// case-insensitive substring: the type filter against the entry type, the set
// filter against any set name or code. Empty filters pass everything.
func FilterEntries(entries []domain.CatalogEntry, typeFilter, setFilter string) []domain.CatalogEntry {
	typeFilter = strings.ToLower(strings.TrimSpace(typeFilter))
	setFilter = strings.ToLower(strings.TrimSpace(setFilter))
	if typeFilter == "" && setFilter == "" {
		return entries
	}

	filtered := make([]domain.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		if typeFilter != "" && !strings.Contains(strings.ToLower(entry.Type), typeFilter) {
			continue
		}
		if setFilter != "" && !matchesSet(entry.Sets, setFilter) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

func matchesSet(sets []domain.CardSet, filter string) bool {
	for _, s := range sets {
		if strings.Contains(strings.ToLower(s.Name), filter) || strings.Contains(strings.ToLower(s.Code), filter) {
			return true
		}
	}
	return false
}

// FilterExisting drops tasks whose target file is already present, scanning
// each output directory once rather than stat-ing per task. With
// validateExisting set, a present-but-corrupt file keeps its task so it gets
// re-downloaded.
func FilterExisting(tasks []domain.DownloadTask, picsDir string, onlyMissing, validateExisting bool) []domain.DownloadTask {
	if !onlyMissing && !validateExisting {
		return tasks
	}

	existingBase := imagefile.ListJPEGs(picsDir)
	existingField := imagefile.ListJPEGs(filepath.Join(picsDir, domain.FieldSubfolder))

	kept := make([]domain.DownloadTask, 0, len(tasks))
	for _, t := range tasks {
		name := strings.ToLower(t.Filename())
		existing := existingBase
		if t.Subfolder == domain.FieldSubfolder {
			existing = existingField
		}
		if _, ok := existing[name]; !ok {
			kept = append(kept, t)
			continue
		}
		if validateExisting {
			if !imagefile.IsValidJPEG(filepath.Join(picsDir, t.Subfolder, t.Filename())) {
				kept = append(kept, t)
			}
		} else if !onlyMissing {
			kept = append(kept, t)
		}
	}
	return kept
}
