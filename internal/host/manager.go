package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/hostbridge/internal/logging"
	"github.com/dshills/hostbridge/internal/metrics"
	"github.com/dshills/hostbridge/internal/node"
	"github.com/dshills/hostbridge/internal/notify"
)

// runtimeFlags are passed to the interpreter before the entry file on
// every launch.
var runtimeFlags = []string{"--experimental-global-webcrypto", "--no-deprecation"}

const (
	// DefaultGracePeriod is how long Stop waits after asking the child to
	// exit before force-killing it.
	DefaultGracePeriod = 5 * time.Second

	// killWait bounds the wait after a force-kill.
	killWait = 2 * time.Second

	// monitorJoin bounds how long Stop waits for the monitor goroutine.
	monitorJoin = 2 * time.Second

	// maxOutputLine caps a single logged child output line.
	maxOutputLine = 1024 * 1024
)

// Status describes the manager lifecycle.
type Status int32

const (
	// StatusStopped means no host process exists.
	StatusStopped Status = iota
	// StatusStarting means a launch is in flight.
	StatusStarting
	// StatusRunning means the host process is alive.
	StatusRunning
	// StatusStopping means a shutdown is in flight.
	StatusStopping
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// RuntimeProvider yields a usable interpreter path, provisioning one when
// none resolves. *node.Installer satisfies it.
type RuntimeProvider interface {
	Ensure(ctx context.Context) (string, error)
}

// EnvSource supplies the allow-listed login shell environment.
// *shellenv.Reconciler satisfies it.
type EnvSource interface {
	Ensure(ctx context.Context) error
	LoadFiltered() (map[string]string, error)
}

// Config configures a Manager.
type Config struct {
	// Runtime resolves or provisions the Node.js interpreter. Required.
	Runtime RuntimeProvider

	// Env supplies the shell environment snapshot. Optional; without it
	// the child inherits only the parent environment.
	Env EnvSource

	// PayloadDir is the extension host payload root. Required.
	PayloadDir string

	// Entry overrides the payload entry file. Empty means the
	// package.json "main" field, falling back to index.js.
	Entry string

	// MinVersion is the interpreter version floor. The zero value
	// disables the gate.
	MinVersion node.Version

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration

	// Proxy is merged into the child environment without overriding
	// variables already present.
	Proxy ProxyConfig

	// SessionID is exported to the child as HOSTBRIDGE_SESSION_ID.
	SessionID string

	// Notifier surfaces user-facing failures. Defaults to notify.Nop.
	Notifier notify.Notifier

	// Logger defaults to the shared logger.
	Logger *logging.Logger

	// Metrics defaults to the nop collector.
	Metrics metrics.Collector
}

// Manager supervises the single extension host process: resolve the
// runtime, gate its version, build the child environment, spawn, drain
// output, and reap. At most one child exists at a time; a crash and a
// requested stop leave the manager in the same stopped state, and nothing
// restarts the child automatically.
type Manager struct {
	cfg      Config
	log      *logging.Logger
	hostLog  *logging.Logger
	notifier notify.Notifier
	metrics  metrics.Collector

	status atomic.Int32

	mu      sync.Mutex
	handle  *ProcessHandle
	monitor chan struct{}
	failure *StartFailure
}

// NewManager returns a Manager for the given configuration.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	col := cfg.Metrics
	if col == nil {
		col = metrics.Nop()
	}
	return &Manager{
		cfg:      cfg,
		log:      logger.WithComponent("host"),
		hostLog:  logger.WithComponent("exthost"),
		notifier: notifier,
		metrics:  col,
	}
}

// Status returns the current lifecycle status.
func (m *Manager) Status() Status {
	return Status(m.status.Load())
}

// Handle returns the current process handle, or nil when stopped.
func (m *Manager) Handle() *ProcessHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// IsRunning reports whether a host process is alive.
func (m *Manager) IsRunning() bool {
	h := m.Handle()
	return h != nil && h.Running()
}

// LastFailure returns the most recent start failure, or nil. A successful
// start clears it.
func (m *Manager) LastFailure() *StartFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Start launches the extension host connected over the given transport.
// Starting while a host is already running or starting is a no-op that
// returns the existing handle. The context bounds the setup phase only;
// the child outlives it.
func (m *Manager) Start(ctx context.Context, transport Transport) (*ProcessHandle, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}
	if !m.status.CompareAndSwap(int32(StatusStopped), int32(StatusStarting)) {
		cur := m.Status()
		if cur == StatusStarting || cur == StatusRunning {
			m.log.Debug("start ignored: host is %s", cur)
			return m.Handle(), nil
		}
		return nil, fmt.Errorf("host is %s", cur)
	}

	if m.cfg.Runtime == nil {
		return m.fail(ReasonRuntimeNotFound, "no runtime provider configured", node.ErrRuntimeNotFound)
	}

	if m.cfg.Env != nil {
		if err := m.cfg.Env.Ensure(ctx); err != nil {
			m.log.Warn("shell environment unavailable: %v", err)
		}
	}

	runtimePath, err := m.cfg.Runtime.Ensure(ctx)
	if err != nil {
		if errors.Is(err, node.ErrRuntimeNotFound) || errors.Is(err, node.ErrNoManifest) {
			return m.fail(ReasonRuntimeNotFound, "no usable Node.js runtime", err)
		}
		return m.fail(ReasonRuntimeSetupFailed, "runtime provisioning failed", err)
	}

	if m.cfg.MinVersion != (node.Version{}) {
		ver, err := node.DetectVersion(ctx, runtimePath)
		if err != nil {
			return m.fail(ReasonRuntimeSetupFailed, "could not determine runtime version", err)
		}
		if err := node.CheckVersion(ver, m.cfg.MinVersion); err != nil {
			m.notifier.BlockingError("Node.js runtime too old", err.Error())
			return m.fail(ReasonVersionTooLow, "runtime below minimum version", err)
		}
	}

	payload, err := ResolvePayload(m.cfg.PayloadDir, m.cfg.Entry)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoEntryFile):
			return m.fail(ReasonEntryFileMissing, "payload entry file missing", err)
		case errors.Is(err, ErrNoModules):
			return m.fail(ReasonModulesMissing, "payload node_modules missing", err)
		default:
			return m.fail(ReasonUnknown, "payload resolution failed", err)
		}
	}

	var snapshot map[string]string
	if m.cfg.Env != nil {
		snapshot, err = m.cfg.Env.LoadFiltered()
		if err != nil {
			m.log.Warn("shell snapshot unreadable, launching without it: %v", err)
			snapshot = nil
		}
	}

	args := make([]string, 0, len(runtimeFlags)+1+4)
	args = append(args, runtimeFlags...)
	args = append(args, payload.Entry)
	args = append(args, transport.Args()...)

	cmd := exec.Command(runtimePath, args...)
	cmd.Dir = payload.Dir
	cmd.Env = BuildEnv(os.Environ(), snapshot, filepath.Dir(runtimePath), transport, m.cfg.SessionID, m.cfg.Proxy)
	configureProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return m.fail(ReasonProcessStart, "pipe child output", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return m.fail(ReasonProcessStart, "spawn "+runtimePath, err)
	}

	h := newProcessHandle(cmd, transport)
	monitor := make(chan struct{})
	drained := make(chan struct{})

	m.mu.Lock()
	m.handle = h
	m.monitor = monitor
	m.failure = nil
	m.mu.Unlock()
	m.status.Store(int32(StatusRunning))

	go m.drainOutput(h, stdout, drained)
	go m.monitorProcess(h, drained, monitor)

	m.metrics.HostStart(metrics.OutcomeOK)
	m.log.Info("host started: pid=%d transport=%s entry=%s", h.PID(), transport, payload.Entry)
	return h, nil
}

// fail records the failure, resets the lifecycle, and returns the error.
func (m *Manager) fail(reason FailureReason, msg string, err error) (*ProcessHandle, error) {
	f := &StartFailure{Reason: reason, Message: msg, Err: err}

	m.mu.Lock()
	m.failure = f
	m.mu.Unlock()
	m.status.Store(int32(StatusStopped))

	m.metrics.HostStart(metrics.OutcomeError)
	m.log.Error("host start failed: %v", f)
	return nil, f
}

// drainOutput logs the child's merged stdout/stderr line by line until the
// pipe closes. Exactly one drain goroutine exists per launch; the monitor
// waits for it before reaping so no output is lost on exit.
func (m *Manager) drainOutput(h *ProcessHandle, r io.Reader, drained chan<- struct{}) {
	defer close(drained)

	log := m.hostLog.WithField("pid", h.PID())
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for sc.Scan() {
		log.Info("%s", sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Debug("output drain ended: %v", err)
	}
}

// monitorProcess reaps the child and clears manager state. A crash takes
// exactly this path too; nothing restarts the child.
func (m *Manager) monitorProcess(h *ProcessHandle, drained <-chan struct{}, monitor chan<- struct{}) {
	defer close(monitor)

	<-drained
	code := exitCodeOf(h.cmd.Wait())

	h.markExited(code)
	m.metrics.HostExit(code)

	m.mu.Lock()
	if m.handle == h {
		m.handle = nil
		m.monitor = nil
	}
	m.mu.Unlock()
	m.status.CompareAndSwap(int32(StatusRunning), int32(StatusStopped))

	uptime := h.Uptime().Round(time.Millisecond)
	if code == 0 {
		m.log.Info("host exited: pid=%d code=0 uptime=%s", h.PID(), uptime)
	} else {
		m.log.Warn("host exited: pid=%d code=%d uptime=%s", h.PID(), code, uptime)
	}
}

// Stop shuts the host down: graceful termination, a grace period, then a
// force-kill with a bounded wait, then a bounded join of the monitor.
// State is always cleared, even when the process could not be killed;
// kill failures are logged, never propagated. Stopping when nothing runs
// is a no-op.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	h := m.handle
	monitor := m.monitor
	m.mu.Unlock()

	if h == nil || !h.Running() {
		m.log.Debug("stop ignored: host not running")
		return
	}
	m.status.Store(int32(StatusStopping))

	grace := m.cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	start := time.Now()
	m.log.Info("stopping host: pid=%d grace=%s", h.PID(), grace)

	if err := terminateProcess(h); err != nil {
		m.log.Warn("terminate failed: pid=%d err=%v", h.PID(), err)
	}
	if !waitExit(ctx, h, grace) {
		m.log.Warn("host still alive after %s, killing: pid=%d", grace, h.PID())
		if err := killProcess(h); err != nil {
			m.log.Warn("kill failed: pid=%d err=%v", h.PID(), err)
		}
		if !waitExit(context.Background(), h, killWait) {
			m.log.Error("host survived kill: pid=%d", h.PID())
		}
	}

	if monitor != nil {
		select {
		case <-monitor:
		case <-time.After(monitorJoin):
			m.log.Warn("monitor did not finish within %s", monitorJoin)
		}
	}

	m.mu.Lock()
	if m.handle == h {
		m.handle = nil
		m.monitor = nil
	}
	m.mu.Unlock()
	m.status.CompareAndSwap(int32(StatusStopping), int32(StatusStopped))

	m.metrics.HostStopDuration(time.Since(start))
	m.log.Info("host stopped: pid=%d took=%s", h.PID(), time.Since(start).Round(time.Millisecond))
}

// waitExit waits for the handle to exit, bounded by the duration and the
// context.
func waitExit(ctx context.Context, h *ProcessHandle, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.Done():
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// exitCodeOf maps a Wait error to an exit code. Signal deaths report -1.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
