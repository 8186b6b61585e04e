package host

import (
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ProcessHandle identifies one running extension host process. A new
// handle is minted per launch so log lines and metrics from an old
// incarnation can never be confused with the current one.
type ProcessHandle struct {
	id        string
	cmd       *exec.Cmd
	transport Transport
	startedAt time.Time

	done     chan struct{}
	running  atomic.Bool
	exitCode atomic.Int32
}

func newProcessHandle(cmd *exec.Cmd, transport Transport) *ProcessHandle {
	h := &ProcessHandle{
		id:        uuid.NewString(),
		cmd:       cmd,
		transport: transport,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	h.running.Store(true)
	return h
}

// ID returns the launch id.
func (h *ProcessHandle) ID() string { return h.id }

// PID returns the operating system process id, or 0 if the process
// never started.
func (h *ProcessHandle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Transport returns the transport the child was launched with.
func (h *ProcessHandle) Transport() Transport { return h.transport }

// StartedAt returns the launch time.
func (h *ProcessHandle) StartedAt() time.Time { return h.startedAt }

// Uptime returns how long the process has been running.
func (h *ProcessHandle) Uptime() time.Duration { return time.Since(h.startedAt) }

// Running reports whether the process is still alive.
func (h *ProcessHandle) Running() bool { return h.running.Load() }

// ExitCode returns the process exit code. The bool is false while the
// process is still running.
func (h *ProcessHandle) ExitCode() (int, bool) {
	if h.running.Load() {
		return 0, false
	}
	return int(h.exitCode.Load()), true
}

// Done is closed once the process has exited and its exit code is
// recorded.
func (h *ProcessHandle) Done() <-chan struct{} { return h.done }

// markExited records the exit code and releases Done waiters. Called
// exactly once by the monitor goroutine.
func (h *ProcessHandle) markExited(code int) {
	h.exitCode.Store(int32(code))
	h.running.Store(false)
	close(h.done)
}
