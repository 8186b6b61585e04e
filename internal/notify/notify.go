// Package notify is the seam between the bridge and whatever surface the
// embedder shows messages on.
//
// The bridge itself never touches UI toolkits. Embedders implement
// Notifier and marshal onto their own UI thread inside it; the bridge may
// call from any goroutine.
package notify

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/dshills/hostbridge/internal/logging"
)

// Severity classifies a passive notification.
type Severity int

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = iota
	// SeverityWarn is a warning the user can ignore.
	SeverityWarn
	// SeverityError is a failure the user should act on.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Notifier surfaces bridge messages to the user.
type Notifier interface {
	// BlockingError demands acknowledgement before the caller proceeds.
	// Reserved for failures that leave the bridge unusable, such as an
	// interpreter older than the supported minimum.
	BlockingError(title, message string)

	// Notify shows a passive notification and returns immediately.
	Notify(sev Severity, title, message string)
}

// Terminal writes notifications to stderr. Blocking errors render as a
// banner when stderr is an interactive terminal.
type Terminal struct{}

// BlockingError prints a prominent error banner.
func (Terminal) BlockingError(title, message string) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\n==== %s ====\n%s\n============\n", title, message)
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", title, message)
}

// Notify prints a one-line notification.
func (Terminal) Notify(sev Severity, title, message string) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", sev, title, message)
}

// Log routes notifications through a logger. The headless default.
type Log struct {
	Logger *logging.Logger
}

// NewLog returns a Log notifier over the given logger.
func NewLog(logger *logging.Logger) Log {
	if logger == nil {
		logger = logging.Default()
	}
	return Log{Logger: logger.WithComponent("notify")}
}

// BlockingError logs at error level. Nothing blocks in headless mode.
func (l Log) BlockingError(title, message string) {
	l.Logger.Error("%s: %s", title, message)
}

// Notify logs at the level matching the severity.
func (l Log) Notify(sev Severity, title, message string) {
	switch sev {
	case SeverityWarn:
		l.Logger.Warn("%s: %s", title, message)
	case SeverityError:
		l.Logger.Error("%s: %s", title, message)
	default:
		l.Logger.Info("%s: %s", title, message)
	}
}

// Nop discards all notifications.
type Nop struct{}

// BlockingError discards the message.
func (Nop) BlockingError(string, string) {}

// Notify discards the message.
func (Nop) Notify(Severity, string, string) {}
