package youtube

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for downloader and prober operations.
var (
	ErrResourceNotFound  = errors.New("youtube: resource not found")
	ErrUnexpectedShape   = errors.New("youtube: unexpected resource shape")
	ErrMissingID         = errors.New("youtube: metadata without id")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// ExitError reports a child process that exited with a non-zero code.
type ExitError struct {
	Bin    string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("youtube: %s exited with code %d", e.Bin, e.Code)
}

// TimeoutError reports a metadata query killed after its deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("youtube: query %s timed out after %s", e.URL, e.Timeout)
}

// InvalidJSONError reports child output that could not be decoded.
type InvalidJSONError struct {
	Source string // "yt-dlp", "ffprobe" or a sidecar path
	Err    error
}

func (e *InvalidJSONError) Error() string {
	return "youtube: invalid JSON from " + e.Source + ": " + e.Err.Error()
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// QueryError wraps errors with the resource being queried.
type QueryError struct {
	URL string
	Err error
}

func (e *QueryError) Error() string {
	return "youtube: query " + e.URL + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }
