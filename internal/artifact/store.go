// Package artifact manages the content-addressed store that holds exactly
// one copy of every mirrored video: data/<c1>/<c2>/<id>.* where c1 and c2
// are the first two characters of the id.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ytmirror/internal/youtube"
)

// ErrInvalidID is returned for ids that cannot be sharded safely.
var ErrInvalidID = errors.New("artifact: invalid video id")

// removeConcurrency bounds parallel unlinks per video.
const removeConcurrency = 4

// Store resolves and mutates artifact paths under a root directory.
type Store struct {
	root string
}

// New returns a store rooted at root (usually <data dir>/data).
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root.
func (s *Store) Root() string { return s.root }

// Dir returns the shard directory for id.
func (s *Store) Dir(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id[:1], id[1:2]), nil
}

// MediaPath returns the path of the merged media file.
func (s *Store) MediaPath(id, ext string) (string, error) {
	return s.file(id, id+"."+ext)
}

// InfoPath returns the path of the info JSON sidecar.
func (s *Store) InfoPath(id string) (string, error) {
	return s.file(id, id+".info.json")
}

// ProbePath returns the path of the probe JSON sidecar for a media file.
func (s *Store) ProbePath(id, ext string) (string, error) {
	return s.file(id, id+"."+ext+".ffprobe.json")
}

func (s *Store) file(id, name string) (string, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ReadInfo loads the info JSON sidecar of an ingested video.
func (s *Store) ReadInfo(id string) (*youtube.Video, error) {
	path, err := s.InfoPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read info for %s: %w", id, err)
	}
	v, err := youtube.ParseVideo(data)
	if err != nil {
		return nil, fmt.Errorf("read info for %s: %w", id, err)
	}
	return v, nil
}

// Ingest moves every regular file of scratchDir into the shard of id,
// replacing files of the same name.
func (s *Store) Ingest(id, scratchDir string) error {
	dir, err := s.Dir(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create shard: %w", err)
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return fmt.Errorf("read scratch: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		src := filepath.Join(scratchDir, e.Name())
		dst := filepath.Join(dir, e.Name())
		if err := moveFile(src, dst); err != nil {
			return fmt.Errorf("ingest %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Files lists every file in the shard that belongs to id: the name up to
// its first '.' equals id. A missing shard yields no files.
func (s *Store) Files(id string) ([]string, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shard: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IDFromName(e.Name()) == id {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// Remove deletes every file of id and returns the bytes reclaimed. Files
// that vanish concurrently are ignored.
func (s *Store) Remove(ctx context.Context, id string) (int64, error) {
	files, err := s.Files(id)
	if err != nil {
		return 0, err
	}

	var freed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(removeConcurrency)
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := os.Lstat(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			freed.Add(info.Size())
			return nil
		})
	}
	err = g.Wait()
	return freed.Load(), err
}

// Usage walks the store and returns the number of files and their total
// size. A missing root is an empty store.
func (s *Store) Usage() (files int, bytes int64, err error) {
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})
	return files, bytes, err
}

// IDFromName returns the part of a file name before its first '.'.
func IDFromName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

func validateID(id string) error {
	if len(id) < 2 || strings.ContainsAny(id, `/\.`) || id != filepath.Base(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".ingest-*.tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Remove(src)
}
