package views

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"ytmirror/internal/artifact"
)

// Index maps video ids to every view entry that links to them.
type Index struct {
	paths map[string][]string
	links int

	// Irregular lists entries in view group directories that are not
	// symlinks, and files found where group directories are expected.
	Irregular []string
}

// Paths returns the view entries linking to id, sorted.
func (ix *Index) Paths(id string) []string {
	p := ix.paths[id]
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// Videos returns the number of distinct ids linked from any view.
func (ix *Index) Videos() int { return len(ix.paths) }

// Links returns the number of symlinks scanned.
func (ix *Index) Links() int { return ix.links }

// IDFromTarget returns the video id a symlink target points at.
func IDFromTarget(target string) string {
	return artifact.IDFromName(filepath.Base(target))
}

// Index scans every view root once. Group directories are read in parallel,
// at most concurrency at a time. Missing roots count as empty.
func (b *Builder) Index(ctx context.Context, concurrency int) (*Index, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	ix := &Index{paths: make(map[string][]string)}

	var groups []string
	for _, r := range Roots {
		root := filepath.Join(b.root, r)
		entries, err := os.ReadDir(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read view root %s: %w", r, err)
		}
		for _, e := range entries {
			p := filepath.Join(root, e.Name())
			if !e.IsDir() {
				ix.Irregular = append(ix.Irregular, p)
				continue
			}
			groups = append(groups, p)
		}
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, dir := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("read view dir: %w", err)
			}

			found := make(map[string][]string, len(entries))
			var irregular []string
			for _, e := range entries {
				p := filepath.Join(dir, e.Name())
				if e.Type()&os.ModeSymlink == 0 {
					irregular = append(irregular, p)
					continue
				}
				target, err := os.Readlink(p)
				if err != nil {
					return fmt.Errorf("read link %s: %w", p, err)
				}
				id := IDFromTarget(target)
				found[id] = append(found[id], p)
			}

			mu.Lock()
			defer mu.Unlock()
			for id, ps := range found {
				ix.paths[id] = append(ix.paths[id], ps...)
				ix.links += len(ps)
			}
			ix.Irregular = append(ix.Irregular, irregular...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ps := range ix.paths {
		sort.Strings(ps)
	}
	sort.Strings(ix.Irregular)

	b.log.Info().Int("videos", ix.Videos()).Int("symlinks", ix.Links()).Msg("indexed view entries")
	return ix, nil
}
