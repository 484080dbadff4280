package views

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ytmirror/internal/youtube"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title_abc.mkv", "Plain Title_abc.mkv"},
		{`a/b\c?d<e>f:g*h|i"j`, "abcdefghij"},
		{"tab\there\x00\x1f", "tabhere"},
		{"c1\u0085control", "c1control"},
		{".", ""},
		{"..", ""},
		{"...", ""},
		{"CON", ""},
		{"con.txt", ""},
		{"LPT1", ""},
		{"CONSOLE", "CONSOLE"},
		{"trailing. . ", "trailing"},
		{"Ünïcödé ✓ title", "Ünïcödé ✓ title"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := strings.Repeat("é", 200) // 400 bytes
	got := Sanitize(long)
	if len(got) > 255 {
		t.Errorf("len = %d, want <= 255", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if len(got) != 254 {
		t.Errorf("len = %d, want 254 (127 two-byte runes)", len(got))
	}
}

func TestLinkName_LongTitleKeepsIDAndExt(t *testing.T) {
	v := &youtube.Video{ID: "dQw4w9WgXcQ", Title: strings.Repeat("長", 90) + " 第1話", Ext: "mkv"}
	name := LinkName(v)
	if len(name) > 255 {
		t.Errorf("len = %d, want <= 255", len(name))
	}
	if !strings.HasSuffix(name, "_dQw4w9WgXcQ.mkv") {
		t.Errorf("LinkName() = %q, lost the id suffix", name)
	}
	if !utf8.ValidString(name) {
		t.Error("truncation split a rune")
	}

	group := groupName(strings.Repeat("🎵", 70), "PLlong")
	if len(group) > 255 || !strings.HasSuffix(group, "_PLlong") {
		t.Errorf("groupName() = %q (%d bytes), want id suffix within 255 bytes", group, len(group))
	}
}

func TestLinkName_TrimsAfterCut(t *testing.T) {
	// The cut lands right after the dots, which must not end the title part.
	title := strings.Repeat("a", 255-len("_dQw4w9WgXcQ.mkv")-2) + "..tail"
	name := LinkName(&youtube.Video{ID: "dQw4w9WgXcQ", Title: title, Ext: "mkv"})
	if strings.Contains(name, "._") {
		t.Errorf("LinkName() = %q, trailing dots kept before the id", name)
	}
	if !strings.HasSuffix(name, "_dQw4w9WgXcQ.mkv") {
		t.Errorf("LinkName() = %q, lost the id suffix", name)
	}
}

func TestEnsureView_LongTitlesInOneSeries(t *testing.T) {
	skipWithoutSymlinks(t)
	root := t.TempDir()
	b := New(root, zerolog.Nop())

	prefix := strings.Repeat("長", 90)
	a := &youtube.Video{ID: "aaaaaaaaaaa", Title: prefix + " 第1話", Ext: "mkv", Channel: "Rick", ChannelID: "UCrick"}
	c := &youtube.Video{ID: "bbbbbbbbbbb", Title: prefix + " 第2話", Ext: "mkv", Channel: "Rick", ChannelID: "UCrick"}
	if LinkName(a) == LinkName(c) {
		t.Fatalf("both videos map to %q", LinkName(a))
	}
	for _, v := range []*youtube.Video{a, c} {
		if err := b.EnsureView(v, Options{}); err != nil {
			t.Fatalf("EnsureView(%s) error = %v", v.ID, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "channels", "Rick_UCrick"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("channel view has %d entries, want 2", len(entries))
	}
}

func skipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlink views need a POSIX filesystem")
	}
}

func testVideo() *youtube.Video {
	return &youtube.Video{
		ID:        "dQw4w9WgXcQ",
		Title:     "Never: Gonna?",
		Ext:       "mkv",
		Channel:   "Rick",
		ChannelID: "UCrick",
	}
}

func TestEnsureView(t *testing.T) {
	skipWithoutSymlinks(t)
	root := t.TempDir()
	b := New(root, zerolog.Nop())
	v := testVideo()

	opts := Options{Playlist: &youtube.PlaylistRef{ID: "PL1", Title: "Mix/Tape"}, ExplicitChannel: true}
	if err := b.EnsureView(v, opts); err != nil {
		t.Fatalf("EnsureView() error = %v", err)
	}

	name := "Never Gonna_dQw4w9WgXcQ.mkv"
	want := filepath.Join("..", "..", "data", "d", "Q", "dQw4w9WgXcQ.mkv")
	for _, p := range []string{
		filepath.Join(root, "playlists", "MixTape_PL1", name),
		filepath.Join(root, "channels", "Rick_UCrick", name),
		filepath.Join(root, "explicit_channels", "Rick_UCrick", name),
	} {
		target, err := os.Readlink(p)
		if err != nil {
			t.Errorf("Readlink(%s) error = %v", p, err)
			continue
		}
		if target != want {
			t.Errorf("target of %s = %q, want %q", p, target, want)
		}
	}

	// Idempotent.
	if err := b.EnsureView(v, opts); err != nil {
		t.Errorf("second EnsureView() error = %v", err)
	}
}

func TestEnsureView_ChannelOnlyByDefault(t *testing.T) {
	skipWithoutSymlinks(t)
	root := t.TempDir()
	b := New(root, zerolog.Nop())

	if err := b.EnsureView(testVideo(), Options{}); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{"playlists", "explicit_channels"} {
		if _, err := os.Stat(filepath.Join(root, dir)); !os.IsNotExist(err) {
			t.Errorf("%s created without being requested", dir)
		}
	}
}

func TestEnsureView_KeepsExistingEntry(t *testing.T) {
	skipWithoutSymlinks(t)
	root := t.TempDir()
	b := New(root, zerolog.Nop())
	v := testVideo()

	dir := filepath.Join(root, "channels", "Rick_UCrick")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, LinkName(v))
	if err := os.Symlink("elsewhere", path); err != nil {
		t.Fatal(err)
	}

	if err := b.EnsureView(v, Options{}); err != nil {
		t.Fatal(err)
	}
	if target, _ := os.Readlink(path); target != "elsewhere" {
		t.Errorf("existing entry replaced, target = %q", target)
	}
}

func TestIndex(t *testing.T) {
	skipWithoutSymlinks(t)
	root := t.TempDir()
	b := New(root, zerolog.Nop())

	a := testVideo()
	c := &youtube.Video{ID: "xQw4w9WgXcZ", Title: "Other", Ext: "webm", Channel: "Rick", ChannelID: "UCrick"}
	if err := b.EnsureView(a, Options{Playlist: &youtube.PlaylistRef{ID: "PL1", Title: "Mix"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.EnsureView(c, Options{ExplicitChannel: true}); err != nil {
		t.Fatal(err)
	}
	// A stray regular file inside a group and one at group level.
	if err := os.WriteFile(filepath.Join(root, "channels", "Rick_UCrick", "notes.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "playlists", "README"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	ix, err := b.Index(context.Background(), 2)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if ix.Videos() != 2 {
		t.Errorf("Videos() = %d, want 2", ix.Videos())
	}
	if ix.Links() != 4 {
		t.Errorf("Links() = %d, want 4", ix.Links())
	}
	if got := ix.Paths(a.ID); len(got) != 2 {
		t.Errorf("Paths(a) = %v, want playlist and channel entries", got)
	}
	if got := ix.Paths(c.ID); len(got) != 2 {
		t.Errorf("Paths(c) = %v, want channel and explicit entries", got)
	}
	if len(ix.Irregular) != 2 {
		t.Errorf("Irregular = %v, want 2 entries", ix.Irregular)
	}
	if len(ix.Paths("missing")) != 0 {
		t.Error("Paths(missing) not empty")
	}
}

func TestIndex_MissingRoots(t *testing.T) {
	b := New(filepath.Join(t.TempDir(), "nothing-here"), zerolog.Nop())

	ix, err := b.Index(context.Background(), 4)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if ix.Videos() != 0 || ix.Links() != 0 {
		t.Errorf("Index() on empty mirror = %d videos, %d links", ix.Videos(), ix.Links())
	}
}

func TestIndex_Canceled(t *testing.T) {
	skipWithoutSymlinks(t)
	root := t.TempDir()
	b := New(root, zerolog.Nop())
	if err := b.EnsureView(testVideo(), Options{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Index(ctx, 1); err == nil {
		t.Error("Index() with canceled context error = nil")
	}
}

func TestIDFromTarget(t *testing.T) {
	tests := map[string]string{
		"../../data/d/Q/dQw4w9WgXcQ.mkv": "dQw4w9WgXcQ",
		"/abs/data/x/Q/xQw4w9WgXcZ.webm": "xQw4w9WgXcZ",
		"plain":                          "plain",
	}
	for in, want := range tests {
		if got := IDFromTarget(in); got != want {
			t.Errorf("IDFromTarget(%q) = %q, want %q", in, got, want)
		}
	}
}
