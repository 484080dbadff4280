// Command ytmirror keeps a deduplicated local mirror of YouTube playlists
// and channels.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"ytmirror"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if errors.Is(err, ytmirror.ErrAlreadyRunning) {
		log.Warn().Str("data_dir", cfg.DataDir).Msg("another ytmirror is working on this data directory")
		os.Exit(2)
	}
	log.Error().Err(err).Msg("critical error")
	os.Exit(1)
}
