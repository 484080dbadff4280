// Package views maintains the human-browsable symlink trees that point into
// the artifact store: one directory per playlist, per channel and per
// explicitly mirrored channel.
package views

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"ytmirror/internal/logging"
	"ytmirror/internal/youtube"
)

// Directory names under the mirror root.
const (
	DataDir          = "data"
	PlaylistsDir     = "playlists"
	ChannelsDir      = "channels"
	ExplicitChannels = "explicit_channels"
)

// Roots lists every view root, in scan order.
var Roots = []string{PlaylistsDir, ChannelsDir, ExplicitChannels}

// Options selects which views EnsureView creates besides the channel view.
type Options struct {
	Playlist        *youtube.PlaylistRef
	ExplicitChannel bool
}

// Builder creates view symlinks below a mirror root.
type Builder struct {
	root string
	log  zerolog.Logger
}

// New returns a builder for the mirror rooted at root.
func New(root string, log zerolog.Logger) *Builder {
	return &Builder{root: root, log: logging.For(log, logging.Views)}
}

// EnsureRoots creates the view root directories.
func (b *Builder) EnsureRoots() error {
	for _, r := range Roots {
		if err := os.MkdirAll(filepath.Join(b.root, r), 0755); err != nil {
			return fmt.Errorf("create view root %s: %w", r, err)
		}
	}
	return nil
}

// EnsureView links v into its channel view, and into the playlist and
// explicit-channel views when opts asks for them. Existing entries are left
// alone, so the call is idempotent.
func (b *Builder) EnsureView(v *youtube.Video, opts Options) error {
	if v == nil || len(v.ID) < 2 {
		return fmt.Errorf("ensure view: invalid video")
	}

	channelDir := groupName(v.Channel, v.ChannelID)

	if opts.Playlist != nil {
		dir := groupName(opts.Playlist.Title, opts.Playlist.ID)
		if err := b.link(v, filepath.Join(PlaylistsDir, dir)); err != nil {
			return err
		}
	}
	if err := b.link(v, filepath.Join(ChannelsDir, channelDir)); err != nil {
		return err
	}
	if opts.ExplicitChannel {
		if err := b.link(v, filepath.Join(ExplicitChannels, channelDir)); err != nil {
			return err
		}
	}
	return nil
}

// LinkTarget returns the relative symlink target used inside a view group
// directory.
func LinkTarget(id, ext string) string {
	return filepath.Join("..", "..", DataDir, id[:1], id[1:2], id+"."+ext)
}

// LinkName returns the entry name of a video inside a view group.
func LinkName(v *youtube.Video) string {
	name := sanitizeWithSuffix(v.Title, "_"+v.ID+"."+v.Ext)
	if name == "" {
		name = Sanitize(v.ID + "." + v.Ext)
	}
	return name
}

func groupName(title, id string) string {
	name := sanitizeWithSuffix(title, "_"+id)
	if name == "" {
		name = Sanitize(id)
	}
	return name
}

func (b *Builder) link(v *youtube.Video, group string) error {
	dir := filepath.Join(b.root, group)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create view dir: %w", err)
	}

	path := filepath.Join(dir, LinkName(v))
	if _, err := os.Lstat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat view entry: %w", err)
	}

	if err := os.Symlink(LinkTarget(v.ID, v.Ext), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create view entry: %w", err)
	}
	b.log.Debug().Str("video", v.ID).Str("view", group).Msg("linked")
	return nil
}
