package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ytmirror/internal/mirror"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [dir]",
	Short: "Purge the videos linked from the to-delete directory",
	Long: `Delete removes every video that a symlink in the to-delete directory
points at: all of its entries in every view, and its files in the store.
Deleted videos are remembered and never downloaded again.

Warning: This operation cannot be undone.

Examples:
  ytmirror delete                       # use playlists/to_delete
  ytmirror delete channels/Someone_UC123`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Resolve(cfg.DeleteDir)
		if len(args) == 1 {
			dir = args[0]
		}

		m, err := mirror.Open(cmd.Context(), mirror.Options{Config: cfg, Log: log})
		if err != nil {
			return err
		}

		rep, runErr := m.DeleteVideos(cmd.Context(), dir)
		if err := errors.Join(runErr, m.Close()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d videos (%d skipped, %d failed), freed %s\n",
			rep.Deleted, rep.Requested, rep.Skipped, rep.Failed, humanize.IBytes(uint64(rep.FreedBytes)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
