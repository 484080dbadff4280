package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ytmirror/internal/storage"
	"ytmirror/internal/youtube"
)

const (
	idA = "aaaaaaaaaaa"
	idB = "bbbbbbbbbbb"
	idC = "ccccccccccc"
	idD = "ddddddddddd"
)

var testNow = time.UnixMilli(1700000000000)

// fakeFetcher answers queries from a table and "downloads" by writing an
// info sidecar and a media file into a fresh scratch directory.
type fakeFetcher struct {
	root      string
	snapshots map[string]*youtube.Snapshot
	queryErrs map[string]error
	videos    map[string]*youtube.Video
	stderr    map[string]string

	queries   []string
	downloads []string
	scratches []string
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		root:      t.TempDir(),
		snapshots: make(map[string]*youtube.Snapshot),
		queryErrs: make(map[string]error),
		videos:    make(map[string]*youtube.Video),
		stderr:    make(map[string]string),
	}
}

func (f *fakeFetcher) QueryResource(ctx context.Context, rawURL string) (*youtube.Snapshot, error) {
	f.queries = append(f.queries, rawURL)
	if err, ok := f.queryErrs[rawURL]; ok {
		return nil, err
	}
	s, ok := f.snapshots[rawURL]
	if !ok {
		return nil, youtube.ErrResourceNotFound
	}
	return s, nil
}

func (f *fakeFetcher) Download(ctx context.Context, id string) (*youtube.DownloadResult, error) {
	f.downloads = append(f.downloads, id)
	work := filepath.Join(f.root, fmt.Sprint(len(f.downloads)))
	scratch := filepath.Join(work, "scratch")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, err
	}
	f.scratches = append(f.scratches, scratch)

	res := &youtube.DownloadResult{WorkDir: work, ScratchDir: scratch}
	if stderr, ok := f.stderr[id]; ok {
		res.Code = 1
		res.Stderr = stderr
		return res, nil
	}

	v, ok := f.videos[id]
	if !ok {
		res.Code = 1
		res.Stderr = "ERROR: no such fake video\n"
		return res, nil
	}
	info, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(scratch, id+".info.json"), info, 0644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(scratch, id+"."+v.Ext), []byte("media:"+id), 0644); err != nil {
		return nil, err
	}
	return res, nil
}

type fakeProber struct {
	fail  map[string]bool
	paths []string
}

const probeJSON = `{"format":{"format_name":"matroska,webm"}}`

func (p *fakeProber) Probe(ctx context.Context, path string) (json.RawMessage, error) {
	p.paths = append(p.paths, path)
	id := strings.SplitN(filepath.Base(path), ".", 2)[0]
	if p.fail[id] {
		return nil, &youtube.ExitError{Bin: "ffprobe", Code: 1}
	}
	return json.RawMessage(probeJSON), nil
}

type testEnv struct {
	root    string
	m       *Mirror
	cat     *storage.Catalog
	fetcher *fakeFetcher
	prober  *fakeProber
}

func skipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlink views need a POSIX filesystem")
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	skipWithoutSymlinks(t)

	root := t.TempDir()
	cat, err := storage.OpenCatalog(filepath.Join(root, CatalogFile))
	if err != nil {
		t.Fatalf("OpenCatalog() error = %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	f := newFakeFetcher(t)
	p := &fakeProber{fail: make(map[string]bool)}
	m := New(Deps{
		Root:    root,
		Catalog: cat,
		Fetcher: f,
		Prober:  p,
		Log:     zerolog.Nop(),
		Now:     func() time.Time { return testNow },
	})
	return &testEnv{root: root, m: m, cat: cat, fetcher: f, prober: p}
}

// addVideos registers downloadable fake videos on the Rick channel.
func (e *testEnv) addVideos(ids ...string) {
	for _, id := range ids {
		e.fetcher.videos[id] = &youtube.Video{
			ID:        id,
			Title:     "Title " + id[:3],
			Ext:       "mkv",
			Channel:   "Rick",
			ChannelID: "UCrick",
		}
	}
}

func playlistSnapshot(id, title string, ids ...string) *youtube.Snapshot {
	s := &youtube.Snapshot{
		Type:          "playlist",
		ID:            id,
		Title:         title,
		ModifiedDate:  "20240101",
		PlaylistCount: len(ids),
	}
	for _, v := range ids {
		s.Entries = append(s.Entries, youtube.Entry{ID: v})
	}
	return s
}

func channelSnapshot(id, title string, ids ...string) *youtube.Snapshot {
	s := playlistSnapshot(id, title+" - Videos", ids...)
	s.ModifiedDate = ""
	return s
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func writeURLFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
