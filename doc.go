// Package ytmirror keeps a deduplicated local mirror of YouTube playlists
// and channels.
//
// Every video is downloaded once with yt-dlp into a content-addressed store
// and exposed through directories of symbolic links:
//
//	data/<c1>/<c2>/<id>.*           media file and sidecars
//	playlists/<title>_<id>/         one entry per playlist video
//	channels/<name>_<id>/           every video grouped by uploader
//	explicit_channels/<name>_<id>/  channels listed in the URL file
//	stats.json                      the catalog
//
// # Syncing
//
// A sync reads a URL file with one playlist, channel, shorts tab or video
// URL per line and downloads every video the catalog does not know yet:
//
//	m, err := mirror.Open(ctx, mirror.Options{Config: cfg, Log: log})
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	rep, err := m.ProcessURLFile(ctx, cfg.Resolve(cfg.URLFile))
//
// Playlists whose modification date and entry count did not change since
// the last sync are skipped. Videos yt-dlp reports as private, removed or
// blocked are recorded as unavailable and not tried again.
//
// # Deleting
//
// Symlinks placed in the to-delete directory name videos to purge. The
// videos lose every view entry and their store files, and are remembered
// as deleted so later syncs never fetch them again.
//
// # Concurrency
//
// Only one process may operate on a data directory at a time. Open fails
// with ErrAlreadyRunning when another instance holds the lock.
//
// # Configuration
//
// Settings come from, in order of priority:
//
//  1. Environment variables (YTMIRROR_DATA_DIR, YTMIRROR_YTDLP_PATH, ...)
//  2. Config file (ytmirror.json or ~/.config/ytmirror/ytmirror.json)
//  3. Default values
//
// # Dependencies
//
// yt-dlp and ffprobe must be installed, either in PATH or at the paths
// given by YTMIRROR_YTDLP_PATH and YTMIRROR_FFPROBE_PATH.
package ytmirror
