package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ytmirror/internal/artifact"
	"ytmirror/internal/mirror"
	"ytmirror/internal/storage"
	"ytmirror/internal/views"
	"ytmirror/internal/youtube"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the mirror holds",
	Long: `Status prints the catalog counters, the size of the store and the
yt-dlp version in use. It only reads the data directory, so it is safe to run
while a sync is in progress.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := storage.ReadCatalog(filepath.Join(cfg.DataDir, mirror.CatalogFile))
		if err != nil {
			return err
		}
		sum := data.Summary()

		files, size, err := artifact.New(filepath.Join(cfg.DataDir, views.DataDir)).Usage()
		if err != nil {
			return fmt.Errorf("measure store: %w", err)
		}

		dl := youtube.NewYtdlp()
		dl.Path = cfg.YtdlpPath
		version, err := dl.Version(cmd.Context())
		if err != nil {
			version = "unavailable (" + err.Error() + ")"
		}

		running := "no"
		lock := storage.NewInstanceLock(cfg.DataDir, log)
		if ok, err := lock.Acquire(); err != nil {
			running = "unknown (" + err.Error() + ")"
		} else if !ok {
			running = "yes"
		} else {
			lock.Release()
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "data dir\t%s\n", cfg.DataDir)
		fmt.Fprintf(w, "sync running\t%s\n", running)
		fmt.Fprintf(w, "runs\t%d\n", sum.Instances)
		fmt.Fprintf(w, "yt-dlp invocations\t%d\n", sum.Invocations)
		fmt.Fprintf(w, "playlists\t%d\n", sum.Lists)
		fmt.Fprintf(w, "channels\t%d\n", sum.Channels)
		fmt.Fprintf(w, "videos fetched\t%d\n", sum.Known)
		fmt.Fprintf(w, "unavailable\t%d\n", sum.Unavailable)
		fmt.Fprintf(w, "deleted\t%d\n", sum.Deleted)
		fmt.Fprintf(w, "store\t%s in %s files\n", humanize.IBytes(uint64(size)), humanize.Comma(int64(files)))
		fmt.Fprintf(w, "yt-dlp\t%s\n", version)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
