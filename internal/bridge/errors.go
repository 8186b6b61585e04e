package bridge

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning means Run was called while a previous Run is still in
// progress.
var ErrAlreadyRunning = errors.New("bridge already running")

// InitError reports which component failed to initialize.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *InitError) Unwrap() error { return e.Err }

// HostExitError is returned by Run when the extension host exits on its
// own with a nonzero code.
type HostExitError struct {
	Code int
}

func (e *HostExitError) Error() string {
	return fmt.Sprintf("extension host exited with code %d", e.Code)
}
