package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ytmirror/internal/mirror"
)

var syncCmd = &cobra.Command{
	Use:   "sync [url-file]",
	Short: "Download new videos of every resource in the URL file",
	Long: `Sync walks the URL file (one playlist, channel, shorts tab or video URL
per line; blank lines and lines starting with # are ignored), downloads every
video not yet in the mirror and refreshes the symlink views.

Unchanged playlists are skipped without looking at their entries. Videos that
are private, removed or otherwise unavailable are remembered and not tried
again.

Examples:
  ytmirror sync                     # use urls.txt in the data directory
  ytmirror sync ~/lists/music.txt
  ytmirror -d /srv/mirror sync`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urlFile := cfg.Resolve(cfg.URLFile)
		if len(args) == 1 {
			urlFile = args[0]
		}

		m, err := mirror.Open(cmd.Context(), mirror.Options{Config: cfg, Log: log})
		if err != nil {
			return err
		}

		rep, runErr := m.ProcessURLFile(cmd.Context(), urlFile)
		if err := errors.Join(runErr, m.Close()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d resources: %d unchanged, %d failed; %d videos downloaded, %d unavailable\n",
			rep.Resources, rep.Skipped, rep.Failed, rep.Downloaded, rep.Unavailable)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
