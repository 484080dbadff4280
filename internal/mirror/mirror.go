// Package mirror runs a ytmirror data directory: it syncs the resources
// listed in a URL file into the artifact store, keeps the symlink views up
// to date and purges videos the user dropped into the to-delete view.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ytmirror/internal/artifact"
	"ytmirror/internal/config"
	"ytmirror/internal/logging"
	"ytmirror/internal/storage"
	"ytmirror/internal/views"
	"ytmirror/internal/youtube"
)

// Layout below the data directory.
const (
	CatalogFile = "stats.json"
	ExecsDir    = "execs"
)

const defaultScanConcurrency = 8

// Fetcher queries and downloads remote resources.
type Fetcher interface {
	QueryResource(ctx context.Context, rawURL string) (*youtube.Snapshot, error)
	Download(ctx context.Context, id string) (*youtube.DownloadResult, error)
}

// Prober extracts media metadata from a downloaded file.
type Prober interface {
	Probe(ctx context.Context, path string) (json.RawMessage, error)
}

// Deps are the components a Mirror works with. Store and Views default to
// the standard layout below Root.
type Deps struct {
	Root            string
	Catalog         *storage.Catalog
	Fetcher         Fetcher
	Prober          Prober
	Store           *artifact.Store
	Views           *views.Builder
	ScanConcurrency int
	Log             zerolog.Logger
	Now             func() time.Time
}

// Mirror ties the catalog, the artifact store and the views of one data
// directory together.
type Mirror struct {
	root            string
	catalog         *storage.Catalog
	fetcher         Fetcher
	prober          Prober
	store           *artifact.Store
	views           *views.Builder
	scanConcurrency int
	now             func() time.Time

	log   zerolog.Logger
	dlLog zerolog.Logger
	gcLog zerolog.Logger

	lock   *storage.InstanceLock
	mu     sync.Mutex
	closed bool
}

// New builds a Mirror from already constructed components.
func New(d Deps) *Mirror {
	m := &Mirror{
		root:            d.Root,
		catalog:         d.Catalog,
		fetcher:         d.Fetcher,
		prober:          d.Prober,
		store:           d.Store,
		views:           d.Views,
		scanConcurrency: d.ScanConcurrency,
		now:             d.Now,
		log:             logging.For(d.Log, logging.Automation),
		dlLog:           logging.For(d.Log, logging.Downloader),
		gcLog:           logging.For(d.Log, logging.GC),
	}
	if m.store == nil {
		m.store = artifact.New(filepath.Join(d.Root, views.DataDir))
	}
	if m.views == nil {
		m.views = views.New(d.Root, d.Log)
	}
	if m.scanConcurrency < 1 {
		m.scanConcurrency = defaultScanConcurrency
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Options configure Open.
type Options struct {
	Config *config.Config
	Log    zerolog.Logger
}

// Open takes the instance lock of the configured data directory, opens its
// catalog and prepares the directory layout. When another instance holds
// the lock Open returns ErrAlreadyRunning and touches nothing.
func Open(ctx context.Context, opts Options) (*Mirror, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	root := cfg.DataDir

	runID := uuid.NewString()
	log := opts.Log.With().Str("run", runID).Logger()

	lock := storage.NewInstanceLock(root, log)
	ok, err := lock.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	m, err := open(root, cfg, runID, log)
	if err != nil {
		lock.Release()
		return nil, err
	}
	m.lock = lock
	return m, nil
}

func open(root string, cfg *config.Config, runID string, log zerolog.Logger) (*Mirror, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	cat, err := storage.OpenCatalog(filepath.Join(root, CatalogFile))
	if err != nil {
		return nil, err
	}
	instance, err := cat.BeginInstance()
	if err != nil {
		cat.Close()
		return nil, err
	}

	for _, dir := range []string{ExecsDir, views.DataDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			cat.Close()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	vb := views.New(root, log)
	if err := vb.EnsureRoots(); err != nil {
		cat.Close()
		return nil, err
	}

	dl := youtube.NewYtdlp()
	dl.Path = cfg.YtdlpPath
	dl.CookiesFile = existingFile(cfg.Resolve(cfg.CookiesFile))
	dl.CacheDir = cfg.Resolve(cfg.CacheDir)
	dl.MetaDir = root
	dl.QueryTimeout = time.Duration(cfg.QueryTimeout)
	rc := cfg.RetryConfig()
	dl.RetryConfig = &rc
	dl.RunID = runID
	dl.Log = logging.For(log, logging.Downloader)
	dl.WorkDir = func() (string, error) {
		n, err := cat.NextInvocation()
		if err != nil {
			return "", persist(err)
		}
		return ExecDir(root, n), nil
	}

	probe := youtube.NewFFprobe()
	probe.Path = cfg.FFprobePath
	probe.Log = logging.For(log, logging.Downloader)

	var fetcher Fetcher = dl
	if cfg.RequestsPerMinute > 0 {
		fetcher = throttle(dl, cfg.RequestsPerMinute)
	}

	m := New(Deps{
		Root:            root,
		Catalog:         cat,
		Fetcher:         fetcher,
		Prober:          probe,
		Views:           vb,
		ScanConcurrency: cfg.ScanConcurrency,
		Log:             log,
	})
	m.log.Info().Int("instance", instance).Str("dir", root).Msg("mirror opened")
	return m, nil
}

// ExecDir returns the working directory of downloader invocation n.
func ExecDir(root string, n int) string {
	return filepath.Join(root, ExecsDir, strconv.Itoa(n/100), strconv.Itoa(n))
}

// Root returns the data directory.
func (m *Mirror) Root() string { return m.root }

// Catalog returns the open catalog.
func (m *Mirror) Catalog() *storage.Catalog { return m.catalog }

// Close flushes the catalog and releases the instance lock. Calling Close
// more than once is a no-op.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.catalog != nil {
		errs = append(errs, m.catalog.Close())
	}
	if m.lock != nil {
		errs = append(errs, m.lock.Release())
	}
	m.log.Debug().Msg("mirror closed")
	return errors.Join(errs...)
}

func (m *Mirror) nowMillis() int64 {
	return m.now().UnixMilli()
}

// existingFile returns path if it names an existing file, otherwise "".
func existingFile(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
