package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

const defaultFFprobePath = "ffprobe"

// FFprobe extracts container and stream metadata from media files.
type FFprobe struct {
	// Path is the path to the ffprobe executable. Defaults to "ffprobe".
	Path string
	Log  zerolog.Logger
}

// NewFFprobe creates a prober with defaults and a no-op logger.
func NewFFprobe() *FFprobe {
	return &FFprobe{Path: defaultFFprobePath, Log: zerolog.Nop()}
}

// Probe runs ffprobe on path and returns its JSON document unchanged.
func (p *FFprobe) Probe(ctx context.Context, path string) (json.RawMessage, error) {
	bin := p.Path
	if bin == "" {
		bin = defaultFFprobePath
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.Log.Debug().Str("file", path).Msg("probing")
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, &ExitError{Bin: bin, Code: ee.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, &InvalidJSONError{Source: "ffprobe", Err: fmt.Errorf("%d bytes of non-JSON output", len(out))}
	}
	return json.RawMessage(out), nil
}
