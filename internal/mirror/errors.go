package mirror

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Open when another process holds the
	// instance lock of the data directory.
	ErrAlreadyRunning = errors.New("mirror: another instance is already running")
	// ErrUnknownResource is returned for URLs that name no supported resource.
	ErrUnknownResource = errors.New("mirror: unknown resource type")
	// ErrUnexpectedSnapshot is returned when a query answers with a different
	// kind of resource than the URL asked for.
	ErrUnexpectedSnapshot = errors.New("mirror: unexpected resource kind")
)

// UnavailableError reports a video that failed permanently and was
// tombstoned.
type UnavailableError struct {
	ID     string
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("mirror: video %s unavailable: %s", e.ID, e.Reason)
}

// DownloadError reports a download that exited non-zero for an unrecognised
// reason. The video stays eligible for the next run.
type DownloadError struct {
	ID   string
	Code int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("mirror: download of %s failed with code %d", e.ID, e.Code)
}

// InconsistencyError reports a to-delete entry whose video is not linked
// from any view.
type InconsistencyError struct {
	ID   string
	Path string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("mirror: no view links found for %s (entry %s)", e.ID, e.Path)
}

// PersistError wraps a catalog write failure. It aborts the run.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "mirror: persist catalog: " + e.Err.Error() }

func (e *PersistError) Unwrap() error { return e.Err }

func persist(err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{Err: err}
}

// isFatal reports whether err must stop the whole run.
func isFatal(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
