package shellenv

import "errors"

// Snapshot errors.
var (
	// ErrCaptureFailed indicates the shell could not be spawned or exited
	// nonzero while dumping its environment.
	ErrCaptureFailed = errors.New("shellenv: shell capture failed")

	// ErrEmptyCapture indicates the shell produced no parseable variables.
	// The previous snapshot, if any, is kept.
	ErrEmptyCapture = errors.New("shellenv: shell produced no environment")
)
