package mirror

import "strings"

// CatalogReader is the part of the catalog the diff needs.
type CatalogReader interface {
	IsKnown(id string) bool
	IsUnavailable(id string) bool
	IsDeleted(id string) bool
}

// Plan splits the entries of a resource into work buckets.
type Plan struct {
	// ToDownload holds ids never fetched and not tombstoned.
	ToDownload []string
	// AlreadyDownloaded holds known ids that were not deleted.
	AlreadyDownloaded []string
	// DeletedWithinResource counts entries the user deleted.
	DeletedWithinResource int
	// Unavailable counts entries skipped as permanently unavailable.
	Unavailable int
}

// Diff classifies ids against the catalog. Blank ids are dropped and
// duplicates collapse onto their first occurrence.
func Diff(cat CatalogReader, ids []string) Plan {
	var p Plan
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" || seen[id] {
			continue
		}
		seen[id] = true

		switch {
		case cat.IsDeleted(id):
			p.DeletedWithinResource++
		case cat.IsKnown(id):
			p.AlreadyDownloaded = append(p.AlreadyDownloaded, id)
		case cat.IsUnavailable(id):
			p.Unavailable++
		default:
			p.ToDownload = append(p.ToDownload, id)
		}
	}
	return p
}
