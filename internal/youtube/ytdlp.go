package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ytmirror/internal/retry"
	"ytmirror/internal/storage"
)

const (
	defaultYtdlpPath = "yt-dlp"
	scratchDirName   = "scratch"
	commandFileName  = "command.json"

	// waitDelay bounds how long a killed child may keep its output pipes open.
	waitDelay = 5 * time.Second
)

// downloadFormat prefers a >1200p video stream together with a 900-1200p one
// and the best audio, then falls back to best video+audio, then best.
const downloadFormat = "(bestvideo*[height>1200]+bestvideo*[height>=900][height<=1200]+bestaudio)/(bestvideo*+bestaudio)/best"

const subtitleLangs = "en,en-orig,en-uk,en-US,en-en-US,en-de,en-de-AT,en-GB,de"

// Ytdlp runs yt-dlp as a subprocess. Every invocation gets its own working
// directory from WorkDir and leaves a command.json describing the call.
type Ytdlp struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// CookiesFile is passed as --cookies when set.
	CookiesFile string

	// CacheDir is passed as --cache-dir when set.
	CacheDir string

	// MetaDir receives the resource metafiles written during queries, under
	// <MetaDir>/<kind>_info/<playlist id>/. Empty disables them.
	MetaDir string

	// QueryTimeout bounds a single metadata query. Zero means no limit.
	QueryTimeout time.Duration

	// RetryConfig holds retry behavior for metadata queries.
	RetryConfig *retry.Config

	// WorkDir returns a fresh directory for one invocation.
	WorkDir func() (string, error)

	// RunID tags command.json files with the run that produced them.
	RunID string

	Log zerolog.Logger
}

// NewYtdlp creates a runner with defaults and a no-op logger.
func NewYtdlp() *Ytdlp {
	cfg := retry.DefaultConfig()
	return &Ytdlp{
		Path:        defaultYtdlpPath,
		RetryConfig: &cfg,
		Log:         zerolog.Nop(),
	}
}

// DownloadResult is the outcome of a download invocation.
type DownloadResult struct {
	Code       int
	Stderr     string
	WorkDir    string
	ScratchDir string
}

// command is the audit record written next to every invocation.
type command struct {
	Bin  string   `json:"bin"`
	Args []string `json:"args"`
	Run  string   `json:"run,omitempty"`
}

// Version returns the output of yt-dlp --version.
func (y *Ytdlp) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, y.path(), "--version").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrYtdlpNotInstalled
		}
		return "", fmt.Errorf("yt-dlp --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// QueryResource fetches the flat listing of a playlist, channel or shorts
// tab. Failures other than a missing resource are retried per RetryConfig.
func (y *Ytdlp) QueryResource(ctx context.Context, rawURL string) (*Snapshot, error) {
	kind := Classify(rawURL)
	args := y.queryArgs(rawURL, kind)

	cfg := retry.DefaultConfig()
	if y.RetryConfig != nil {
		cfg = *y.RetryConfig
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
			y.Log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Str("url", rawURL).Msg("query failed, retrying")
		}
	}

	var snap *Snapshot
	err := retry.Do(ctx, cfg, retry.IsRetryable, func(ctx context.Context) error {
		s, err := y.query(ctx, rawURL, args)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (y *Ytdlp) query(ctx context.Context, rawURL string, args []string) (*Snapshot, error) {
	runCtx := ctx
	if y.QueryTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, y.QueryTimeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	_, stderr, err := y.run(runCtx, args, &stdout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &QueryError{URL: rawURL, Err: ctx.Err()}
		}
		if runCtx.Err() == context.DeadlineExceeded {
			y.Log.Error().Dur("timeout", y.QueryTimeout).Str("url", rawURL).Msg("query timeout reached, killed yt-dlp")
			return nil, &TimeoutError{URL: rawURL, Timeout: y.QueryTimeout}
		}

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if strings.Contains(stderr, "does not exist") || strings.Contains(stderr, "not found") {
				return nil, retry.Permanent(&QueryError{URL: rawURL, Err: fmt.Errorf("%w: %w", ErrResourceNotFound, exitErr)})
			}
			return nil, &QueryError{URL: rawURL, Err: exitErr}
		}
		return nil, retry.Permanent(&QueryError{URL: rawURL, Err: err})
	}

	snap, err := ParseSnapshot(stdout.Bytes())
	if err != nil {
		return nil, &QueryError{URL: rawURL, Err: err}
	}
	return snap, nil
}

// Download fetches one video into the scratch directory of a fresh
// invocation directory. A non-zero exit is reported through Code, not as an
// error; the error is reserved for processes that could not run at all.
func (y *Ytdlp) Download(ctx context.Context, id string) (*DownloadResult, error) {
	workDir, err := y.workDir()
	if err != nil {
		return nil, err
	}
	scratch := filepath.Join(workDir, scratchDirName)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	log := y.Log.With().Str("video", id).Logger()
	stdout := newLineWriter(func(line string) {
		log.Debug().Msg(line)
	})

	_, stderr, err := y.runIn(ctx, workDir, y.downloadArgs(id, scratch), stdout)
	stdout.Flush()

	res := &DownloadResult{Stderr: stderr, WorkDir: workDir, ScratchDir: scratch}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		res.Code = exitErr.Code
	}
	return res, nil
}

func (y *Ytdlp) queryArgs(rawURL string, kind Kind) []string {
	args := []string{
		"--no-simulate",
		"--write-all-thumbnails",
		"--write-info-json",
		"--write-playlist-metafiles",
		"--flat-playlist",
		"--no-overwrites",
		"--dump-single-json",
	}
	if y.MetaDir != "" {
		out := filepath.Join(y.MetaDir, kind.String()+"_info", "%(playlist_id)s", "%(id)s.%(ext)s")
		args = append(args, "--output", out)
	}
	if kind == KindPlaylist && y.CookiesFile != "" {
		args = append(args, "--cookies", y.CookiesFile)
	}
	args = append(args, y.commonArgs()...)
	return append(args, rawURL)
}

func (y *Ytdlp) downloadArgs(id, scratch string) []string {
	args := []string{
		"--output", filepath.Join(scratch, "%(id)s.%(ext)s"),
		"--concurrent-fragments", "8",
		"--throttled-rate", "500K",
		"--retries", "10",
		"--retry-sleep", "5",
		"--no-keep-fragments",
		"--buffer-size", "64K",
		"--no-restrict-filenames",
		"--windows-filenames",
		"--no-overwrites",
		"--continue",

		"--embed-metadata",
		"--embed-chapters",
		"--no-split-chapters",
		"--no-remove-chapters",
		"--no-embed-info-json",
		"--write-info-json",

		"--write-description",
		"--embed-thumbnail",
		"--write-all-thumbnails",

		"--progress",
		"--newline",

		"--video-multistreams",
		"--format", downloadFormat,
		"--merge-output-format", "mkv",

		"--write-subs",
		"--write-auto-subs",
		"--embed-subs",
		"--sub-langs", subtitleLangs,
		"--sub-format", "srt/best",
		"--convert-subs", "srt",

		"--sponsorblock-mark", "all",
		"--sponsorblock-chapter-title", "[SB]: %(category_names)l",
	}
	if y.CookiesFile != "" {
		args = append(args, "--cookies", y.CookiesFile)
	}
	args = append(args, y.commonArgs()...)
	return append(args, VideoURL(id))
}

func (y *Ytdlp) commonArgs() []string {
	args := []string{"--write-pages"}
	if y.CacheDir != "" {
		args = append(args, "--cache-dir", y.CacheDir)
	}
	return args
}

// run executes yt-dlp in a fresh working directory.
func (y *Ytdlp) run(ctx context.Context, args []string, stdout io.Writer) (string, string, error) {
	workDir, err := y.workDir()
	if err != nil {
		return "", "", err
	}
	return y.runIn(ctx, workDir, args, stdout)
}

// runIn writes command.json into workDir, then runs yt-dlp there. stderr is
// logged line by line and returned in full. A non-zero exit is an *ExitError.
func (y *Ytdlp) runIn(ctx context.Context, workDir string, args []string, stdout io.Writer) (string, string, error) {
	bin := y.path()
	if err := storage.WriteJSONAtomic(filepath.Join(workDir, commandFileName), command{Bin: bin, Args: args, Run: y.RunID}); err != nil {
		return workDir, "", fmt.Errorf("write %s: %w", commandFileName, err)
	}

	var stderr bytes.Buffer
	stderrLog := newLineWriter(func(line string) {
		y.Log.Error().Str("stream", "stderr").Msg(line)
	})

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = workDir
	cmd.WaitDelay = waitDelay
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(&stderr, stderrLog)

	y.Log.Debug().Str("dir", workDir).Strs("args", args).Msg("running yt-dlp")
	err := cmd.Run()
	stderrLog.Flush()

	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return workDir, stderr.String(), &ExitError{Bin: bin, Code: ee.ExitCode(), Stderr: stderr.String()}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return workDir, stderr.String(), ErrYtdlpNotInstalled
		}
		return workDir, stderr.String(), fmt.Errorf("start %s: %w", bin, err)
	}
	return workDir, stderr.String(), nil
}

func (y *Ytdlp) workDir() (string, error) {
	if y.WorkDir != nil {
		dir, err := y.WorkDir()
		if err != nil {
			return "", fmt.Errorf("allocate work dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create work dir: %w", err)
		}
		return dir, nil
	}
	return os.MkdirTemp("", "ytmirror-exec-*")
}

func (y *Ytdlp) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// lineWriter splits a byte stream into lines and hands each non-empty one to
// emit. Flush emits a trailing partial line.
type lineWriter struct {
	buf  []byte
	emit func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.line(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.line(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) line(b []byte) {
	if s := strings.TrimSpace(string(b)); s != "" {
		w.emit(s)
	}
}
