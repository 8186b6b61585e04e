package host

import "fmt"

// FailureReason classifies why a host start attempt failed.
type FailureReason int

const (
	// ReasonUnknown is the zero value; no classified cause.
	ReasonUnknown FailureReason = iota
	// ReasonRuntimeNotFound means no interpreter was found and the
	// distribution ships no way to install one.
	ReasonRuntimeNotFound
	// ReasonRuntimeSetupFailed means provisioning was attempted and failed:
	// unreachable mirror, broken download, or a failed offline installer.
	ReasonRuntimeSetupFailed
	// ReasonVersionTooLow means the interpreter is older than the minimum.
	// The only blocking failure; the user must act.
	ReasonVersionTooLow
	// ReasonEntryFileMissing means the payload entry file does not exist.
	ReasonEntryFileMissing
	// ReasonModulesMissing means the payload node_modules dir is absent.
	ReasonModulesMissing
	// ReasonProcessStart is the catch-all for OS-level spawn failures.
	ReasonProcessStart
)

// String returns a stable label for the reason.
func (r FailureReason) String() string {
	switch r {
	case ReasonRuntimeNotFound:
		return "runtime-not-found"
	case ReasonRuntimeSetupFailed:
		return "runtime-setup-failed"
	case ReasonVersionTooLow:
		return "runtime-version-too-low"
	case ReasonEntryFileMissing:
		return "entry-file-missing"
	case ReasonModulesMissing:
		return "modules-missing"
	case ReasonProcessStart:
		return "process-start-failed"
	default:
		return "unknown"
	}
}

// StartFailure is the error a failed Start returns and records.
type StartFailure struct {
	Reason  FailureReason
	Message string
	Err     error
}

func (f *StartFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("host start (%s): %s: %v", f.Reason, f.Message, f.Err)
	}
	return fmt.Sprintf("host start (%s): %s", f.Reason, f.Message)
}

// Unwrap returns the underlying cause.
func (f *StartFailure) Unwrap() error { return f.Err }
