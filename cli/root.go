package main

import (
	"os"

	"github.com/spf13/cobra"

	"ytmirror/internal/config"
	"ytmirror/internal/logging"
)

var (
	configPath string
	dataDir    string
	verbose    bool

	cfg = config.DefaultConfig()
	log = logging.New(os.Stderr, false)
)

var rootCmd = &cobra.Command{
	Use:   "ytmirror",
	Short: "Mirror YouTube playlists and channels into a deduplicated archive",
	Long: `ytmirror downloads every video of the playlists, channels and shorts
tabs listed in a URL file into a content-addressed store, exactly once, and
exposes them through symlink views:

  data/<c1>/<c2>/<id>.*          one copy of every video and its sidecars
  playlists/<title>_<id>/        one entry per playlist video
  channels/<name>_<id>/          one entry per video, grouped by channel
  explicit_channels/<name>_<id>/ channels listed in the URL file

Videos linked from the to-delete directory are purged by "ytmirror delete"
and never fetched again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("data-dir") {
			c.DataDir = dataDir
		}
		if cmd.Flags().Changed("verbose") {
			c.Verbose = verbose
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		log = logging.New(os.Stderr, cfg.Verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ytmirror.json or ~/.config/ytmirror/ytmirror.json)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", ".", "mirror data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
