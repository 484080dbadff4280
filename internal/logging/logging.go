// Package logging builds the zerolog loggers shared by every component.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Component tags used in the "component" field.
const (
	Automation = "AUTO"
	Downloader = "DL"
	IPC        = "IPC"
	GC         = "GC"
	Views      = "VIEW"
)

// New returns a console logger writing to w. Verbose enables debug output.
func New(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// For returns log tagged with a component name.
func For(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
