package youtube

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

	"ytmirror/internal/retry"
)

// writeScript creates an executable shell script standing in for yt-dlp.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to create mock yt-dlp: %v", err)
	}
	return path
}

// newTestYtdlp returns a runner whose invocations land in numbered dirs.
func newTestYtdlp(t *testing.T, bin string) (*Ytdlp, *[]string) {
	t.Helper()
	root := t.TempDir()
	var dirs []string
	cfg := retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
	y := &Ytdlp{
		Path:        bin,
		RetryConfig: &cfg,
		RunID:       "run-1",
		Log:         zerolog.Nop(),
		WorkDir: func() (string, error) {
			dir := filepath.Join(root, fmt.Sprint(len(dirs)+1))
			dirs = append(dirs, dir)
			return dir, nil
		},
	}
	return y, &dirs
}

func readCommand(t *testing.T, dir string) command {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, commandFileName))
	if err != nil {
		t.Fatalf("read command.json: %v", err)
	}
	var c command
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("parse command.json: %v", err)
	}
	return c
}

func TestYtdlp_QueryResource(t *testing.T) {
	bin := writeScript(t, "cat << 'EOF'\n"+samplePlaylistJSON+"\nEOF\n")
	y, dirs := newTestYtdlp(t, bin)
	y.CookiesFile = "/tmp/cookies.txt"
	y.CacheDir = "/tmp/cache"

	url := "https://www.youtube.com/playlist?list=PL1"
	snap, err := y.QueryResource(context.Background(), url)
	if err != nil {
		t.Fatalf("QueryResource() error = %v", err)
	}
	if snap.Kind() != SnapshotPlaylist || len(snap.Entries) != 2 {
		t.Errorf("QueryResource() = %+v", snap)
	}

	if len(*dirs) != 1 {
		t.Fatalf("invocations = %d, want 1", len(*dirs))
	}
	c := readCommand(t, (*dirs)[0])
	if c.Bin != bin || c.Run != "run-1" {
		t.Errorf("command.json = %+v", c)
	}
	if c.Args[len(c.Args)-1] != url {
		t.Errorf("last arg = %q, want the url", c.Args[len(c.Args)-1])
	}
	joined := strings.Join(c.Args, " ")
	for _, want := range []string{"--flat-playlist", "--dump-single-json", "--cookies /tmp/cookies.txt", "--cache-dir /tmp/cache", "--write-pages"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, c.Args)
		}
	}
}

func TestYtdlp_QueryResource_ChannelHasNoCookies(t *testing.T) {
	bin := writeScript(t, "cat << 'EOF'\n"+sampleChannelJSON+"\nEOF\n")
	y, dirs := newTestYtdlp(t, bin)
	y.CookiesFile = "/tmp/cookies.txt"
	y.MetaDir = "/srv/mirror"

	if _, err := y.QueryResource(context.Background(), "https://www.youtube.com/@someone"); err != nil {
		t.Fatalf("QueryResource() error = %v", err)
	}
	c := readCommand(t, (*dirs)[0])
	joined := strings.Join(c.Args, " ")
	if strings.Contains(joined, "--cookies") {
		t.Errorf("channel query passed cookies: %v", c.Args)
	}
	if !strings.Contains(joined, filepath.Join("/srv/mirror", "channel_info")) {
		t.Errorf("metafiles not routed to channel_info: %v", c.Args)
	}
}

func TestYtdlp_QueryResource_NotFound(t *testing.T) {
	bin := writeScript(t, `echo "ERROR: [youtube:tab] PL1: The playlist does not exist." >&2
exit 1
`)
	y, dirs := newTestYtdlp(t, bin)

	_, err := y.QueryResource(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("QueryResource() error = %v, want ErrResourceNotFound", err)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("error does not carry exit code 1: %v", err)
	}
	if len(*dirs) != 1 {
		t.Errorf("invocations = %d, want 1 (not retried)", len(*dirs))
	}
}

func TestYtdlp_QueryResource_RetriesTransientFailure(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "failed-once")
	bin := writeScript(t, `if [ ! -f "`+marker+`" ]; then
  touch "`+marker+`"
  echo "ERROR: HTTP Error 429: Too Many Requests" >&2
  exit 1
fi
cat << 'EOF'
`+samplePlaylistJSON+`
EOF
`)
	y, dirs := newTestYtdlp(t, bin)

	if _, err := y.QueryResource(context.Background(), "https://www.youtube.com/playlist?list=PL1"); err != nil {
		t.Fatalf("QueryResource() error = %v", err)
	}
	if len(*dirs) != 2 {
		t.Errorf("invocations = %d, want 2", len(*dirs))
	}
}

func TestYtdlp_QueryResource_Timeout(t *testing.T) {
	bin := writeScript(t, "exec sleep 5\n")
	y, _ := newTestYtdlp(t, bin)
	y.QueryTimeout = 100 * time.Millisecond
	y.RetryConfig.MaxRetries = 0

	start := time.Now()
	_, err := y.QueryResource(context.Background(), "https://www.youtube.com/@someone")
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("QueryResource() error = %v, want *TimeoutError", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("timeout took %v, child was not killed", elapsed)
	}
}

func TestYtdlp_QueryResource_InvalidJSON(t *testing.T) {
	bin := writeScript(t, "echo 'this is not json'\n")
	y, _ := newTestYtdlp(t, bin)
	y.RetryConfig.MaxRetries = 0

	_, err := y.QueryResource(context.Background(), "https://www.youtube.com/@someone")
	var jsonErr *InvalidJSONError
	if !errors.As(err, &jsonErr) {
		t.Fatalf("QueryResource() error = %v, want *InvalidJSONError", err)
	}
}

func TestYtdlp_QueryResource_Canceled(t *testing.T) {
	bin := writeScript(t, "exec sleep 5\n")
	y, _ := newTestYtdlp(t, bin)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := y.QueryResource(ctx, "https://www.youtube.com/@someone")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("QueryResource() error = %v, want context.Canceled", err)
	}
}

func TestYtdlp_Download(t *testing.T) {
	bin := writeScript(t, `echo '`+sampleInfoJSON+`' > scratch/dQw4w9WgXcQ.info.json
echo media > scratch/dQw4w9WgXcQ.mkv
echo "[download] 100% of 1.00MiB"
`)
	y, dirs := newTestYtdlp(t, bin)

	res, err := y.Download(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.Code != 0 {
		t.Errorf("Code = %d, want 0", res.Code)
	}
	if res.WorkDir != (*dirs)[0] || res.ScratchDir != filepath.Join(res.WorkDir, "scratch") {
		t.Errorf("dirs = %q / %q", res.WorkDir, res.ScratchDir)
	}
	for _, name := range []string{"dQw4w9WgXcQ.info.json", "dQw4w9WgXcQ.mkv"} {
		if _, err := os.Stat(filepath.Join(res.ScratchDir, name)); err != nil {
			t.Errorf("scratch missing %s: %v", name, err)
		}
	}

	c := readCommand(t, res.WorkDir)
	joined := strings.Join(c.Args, " ")
	for _, want := range []string{
		"--merge-output-format mkv",
		"--sponsorblock-mark all",
		"--throttled-rate 500K",
		"--output " + filepath.Join(res.ScratchDir, "%(id)s.%(ext)s"),
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("download args missing %q", want)
		}
	}
	if c.Args[len(c.Args)-1] != VideoURL("dQw4w9WgXcQ") {
		t.Errorf("last arg = %q, want watch url", c.Args[len(c.Args)-1])
	}
}

func TestYtdlp_DownloadNonZeroExit(t *testing.T) {
	bin := writeScript(t, `echo "ERROR: [youtube] dQw4w9WgXcQ: Video unavailable" >&2
exit 1
`)
	y, _ := newTestYtdlp(t, bin)

	res, err := y.Download(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Download() error = %v, want nil for non-zero exit", err)
	}
	if res.Code != 1 {
		t.Errorf("Code = %d, want 1", res.Code)
	}
	if !strings.Contains(res.Stderr, "Video unavailable") {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestYtdlp_DownloadMissingBinary(t *testing.T) {
	y, _ := newTestYtdlp(t, "/nonexistent/path/to/yt-dlp")

	if _, err := y.Download(context.Background(), "dQw4w9WgXcQ"); err == nil {
		t.Error("expected error for non-existent yt-dlp")
	}
}

func TestYtdlp_Version(t *testing.T) {
	bin := writeScript(t, "echo 2024.01.01\n")
	y := NewYtdlp()
	y.Path = bin

	v, err := y.Version(context.Background())
	if err != nil || v != "2024.01.01" {
		t.Errorf("Version() = %q, %v", v, err)
	}
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := newLineWriter(func(s string) { lines = append(lines, s) })

	w.Write([]byte("first\nsec"))
	w.Write([]byte("ond\n\n  \nthird"))
	w.Flush()

	want := []string{"first", "second", "third"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}
