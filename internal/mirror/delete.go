package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"ytmirror/internal/views"
)

// DeleteReport summarizes a deletion pass.
type DeleteReport struct {
	// Requested counts symlinks found in the to-delete directory.
	Requested int
	// Deleted counts videos purged from the mirror.
	Deleted int
	// Skipped counts entries left alone because of an inconsistency.
	Skipped int
	// Failed counts videos tombstoned whose links or files could not all
	// be removed.
	Failed int
	// FreedBytes is the size of the artifact files removed.
	FreedBytes int64
}

// DeleteVideos purges every video linked directly from viewDir. For each
// one, every view symlink resolving to it is removed along with its
// artifact files, and the id is tombstoned so later syncs skip it. A missing
// viewDir means there is nothing to delete.
func (m *Mirror) DeleteVideos(ctx context.Context, viewDir string) (*DeleteReport, error) {
	rep := &DeleteReport{}

	entries, err := os.ReadDir(viewDir)
	if errors.Is(err, os.ErrNotExist) {
		m.gcLog.Info().Str("dir", viewDir).Msg("no delete directory, nothing to do")
		return rep, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read delete dir: %w", err)
	}
	if len(entries) == 0 {
		return rep, nil
	}

	ix, err := m.views.Index(ctx, m.scanConcurrency)
	if err != nil {
		return nil, err
	}
	for _, p := range ix.Irregular {
		m.gcLog.Warn().Str("path", p).Msg("view entry is not a symlink")
	}

	ownDir := absPath(viewDir)
	done := make(map[string]bool)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		entry := filepath.Join(viewDir, e.Name())
		if e.Type()&os.ModeSymlink == 0 {
			m.gcLog.Error().Str("path", entry).Msg("entry in delete directory is not a symlink, skipping")
			rep.Skipped++
			continue
		}
		rep.Requested++

		target, err := os.Readlink(entry)
		if errors.Is(err, os.ErrNotExist) {
			// Removed along with an earlier entry for the same video.
			continue
		}
		if err != nil {
			m.gcLog.Error().Err(err).Str("path", entry).Msg("reading symlink failed, skipping")
			rep.Skipped++
			continue
		}
		id := views.IDFromTarget(target)
		if done[id] {
			removeEntry(entry)
			continue
		}

		paths := linksOutside(ix.Paths(id), ownDir)
		if len(paths) == 0 {
			err := &InconsistencyError{ID: id, Path: entry}
			m.gcLog.Error().Err(err).Str("video", id).Msg("no symlinks found for video, skipping")
			rep.Skipped++
			continue
		}

		freed, err := m.deleteVideo(ctx, id, append(paths, entry))
		done[id] = true
		rep.FreedBytes += freed
		if err != nil {
			if isFatal(err) {
				return rep, err
			}
			m.gcLog.Error().Err(err).Str("video", id).Msg("deleting video failed")
			rep.Failed++
			continue
		}
		rep.Deleted++
	}

	m.gcLog.Info().
		Int("deleted", rep.Deleted).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Str("freed", humanize.IBytes(uint64(rep.FreedBytes))).
		Msg("deletion finished")
	return rep, nil
}

// deleteVideo tombstones id, then removes links and artifact files. The
// tombstone is written first so a crash halfway never resurrects the video.
func (m *Mirror) deleteVideo(ctx context.Context, id string, links []string) (int64, error) {
	if err := m.catalog.MarkDeleted(id); err != nil {
		return 0, persist(err)
	}

	removed := 0
	for _, p := range links {
		if removeEntry(p) {
			removed++
		} else {
			m.gcLog.Warn().Str("path", p).Msg("removing symlink failed")
		}
	}

	freed, err := m.store.Remove(ctx, id)
	m.gcLog.Info().
		Str("video", id).
		Int("symlinks", removed).
		Str("freed", humanize.IBytes(uint64(freed))).
		Msg("deleted video")
	if err != nil {
		return freed, err
	}
	if removed < len(links) {
		return freed, fmt.Errorf("%d of %d symlinks of %s left in place", len(links)-removed, len(links), id)
	}
	return freed, nil
}

// linksOutside drops the links that live directly in dir.
func linksOutside(paths []string, dir string) []string {
	var out []string
	for _, p := range paths {
		if absPath(filepath.Dir(p)) != dir {
			out = append(out, p)
		}
	}
	return out
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// removeEntry unlinks p. It reports false only when p still exists.
func removeEntry(p string) bool {
	err := os.Remove(p)
	return err == nil || errors.Is(err, os.ErrNotExist)
}
