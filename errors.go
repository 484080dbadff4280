package ytmirror

import (
	"ytmirror/internal/artifact"
	"ytmirror/internal/mirror"
	"ytmirror/internal/retry"
	"ytmirror/internal/storage"
	"ytmirror/internal/youtube"
)

// Error types exported for callers that inspect failures with errors.As:
//
//	var unavailable *ytmirror.UnavailableError
//	if errors.As(err, &unavailable) {
//		fmt.Printf("%s: %s\n", unavailable.ID, unavailable.Reason)
//	}
type (
	// UnavailableError reports a video that yt-dlp can never fetch.
	UnavailableError = mirror.UnavailableError
	// DownloadError reports a download that failed for an unclassified reason.
	DownloadError = mirror.DownloadError
	// InconsistencyError reports a to-delete entry linked from no view.
	InconsistencyError = mirror.InconsistencyError
	// PersistError reports a catalog write that failed. It aborts a run.
	PersistError = mirror.PersistError

	// ExitError reports a child process that exited with a non-zero code.
	ExitError = youtube.ExitError
	// TimeoutError reports a metadata query killed after its deadline.
	TimeoutError = youtube.TimeoutError
	// InvalidJSONError reports yt-dlp or ffprobe output that did not decode.
	InvalidJSONError = youtube.InvalidJSONError
	// QueryError wraps a failed metadata query with its URL.
	QueryError = youtube.QueryError

	// RetryExhaustedError reports a metadata query that failed every attempt.
	RetryExhaustedError = retry.ExhaustedError

	// StorageError wraps errors during catalog operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	ErrAlreadyRunning     = mirror.ErrAlreadyRunning
	ErrUnknownResource    = mirror.ErrUnknownResource
	ErrUnexpectedSnapshot = mirror.ErrUnexpectedSnapshot

	// ErrResourceNotFound indicates yt-dlp reported the playlist or channel
	// as missing.
	ErrResourceNotFound  = youtube.ErrResourceNotFound
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled

	// Storage errors
	ErrNotFound       = storage.ErrNotFound
	ErrInvalidInput   = storage.ErrInvalidInput
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrLockTimeout    = storage.ErrLockTimeout
	ErrClosed         = storage.ErrClosed

	ErrInvalidID = artifact.ErrInvalidID
)

// IsRetryable reports whether a failed metadata query is worth retrying.
// Context errors and queries for a missing resource are final.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
