// Package host supervises the Node.js extension host process.
//
// The Manager owns the full launch sequence: refresh the shell environment
// snapshot, resolve or provision a runtime interpreter, gate it on the
// minimum supported version, resolve the payload entry file, assemble the
// child environment, and spawn the process with its IPC transport rendered
// as environment variables and CLI flags.
//
// # Lifecycle
//
// At most one host process runs per Manager. Start on a running manager is
// a no-op returning nil; Stop on a stopped manager is a no-op. A monitor
// goroutine observes the child and clears the running state when it exits,
// for any reason, so a crashed host looks exactly like a stopped one. The
// bridge never restarts the host on its own; restart policy belongs to the
// embedder.
//
// # Failure reporting
//
// Every failed Start records a StartFailure carrying a FailureReason. The
// most recent failure is queryable via LastFailure, which the embedder
// uses to drive its own UI.
package host
