// Package metrics defines the bridge's instrumentation seam.
//
// Components record through the Collector interface so embedders can plug
// in Prometheus, a test spy, or nothing at all.
package metrics

import "time"

// Outcome labels shared by collectors.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector receives operational events from the bridge.
type Collector interface {
	// HostStart records a start attempt and its outcome label.
	HostStart(outcome string)
	// HostExit records a host process exit with its code.
	HostExit(code int)
	// HostStopDuration records how long a stop took, including escalation.
	HostStopDuration(d time.Duration)
	// RuntimeInstall records a runtime provisioning attempt.
	RuntimeInstall(outcome string)
	// SnapshotRefresh records a shell environment snapshot refresh.
	SnapshotRefresh(outcome string)
	// CommandDispatch records a dispatched command and its outcome label.
	CommandDispatch(id string, outcome string, d time.Duration)
}

// nop discards everything.
type nop struct{}

func (nop) HostStart(string)                              {}
func (nop) HostExit(int)                                  {}
func (nop) HostStopDuration(time.Duration)                {}
func (nop) RuntimeInstall(string)                         {}
func (nop) SnapshotRefresh(string)                        {}
func (nop) CommandDispatch(string, string, time.Duration) {}

// Nop returns a Collector that discards all events.
func Nop() Collector {
	return nop{}
}
