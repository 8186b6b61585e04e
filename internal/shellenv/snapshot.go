// Package shellenv captures the user's interactive shell environment and
// serves it to the bridge through a cached, allow-list-filtered snapshot.
//
// IDEs launched from a desktop session inherit a bare environment; version
// managers like nvm or pyenv only configure PATH in shell rc files. The
// snapshot closes that gap without paying the shell startup cost on every
// host launch.
package shellenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/hostbridge/internal/logging"
	"github.com/dshills/hostbridge/internal/metrics"
)

// Reserved snapshot keys. They carry snapshot metadata, never reach the
// child environment, and survive the allow-list by being stripped first.
const (
	KeyUpdatedAt = "__UPDATED_AT__"
	KeyFromIDE   = "__FROM_IDE__"
)

// DefaultMaxAge is the freshness window for a cached snapshot.
const DefaultMaxAge = 5 * time.Minute

// captureTimeout bounds a single shell environment capture. Slow rc files
// happen; hung shells must not.
const captureTimeout = 20 * time.Second

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultCachePath returns the per-OS snapshot file location.
func DefaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "idea-shell-env.json")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Caches", "idea-shell-env.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".cache", "idea-shell-env.json")
	}
}

// Config configures a Reconciler.
type Config struct {
	// CachePath is the snapshot file. Defaults to DefaultCachePath().
	CachePath string
	// MaxAge is the freshness window. Defaults to DefaultMaxAge.
	MaxAge time.Duration
	// Launcher runs shell invocations. Defaults to ExecLauncher.
	Launcher Launcher
	// Logger defaults to the shared bridge logger.
	Logger *logging.Logger
	// Metrics defaults to the no-op collector.
	Metrics metrics.Collector
}

// Reconciler keeps the shell environment snapshot fresh and serves its
// filtered contents.
type Reconciler struct {
	cachePath string
	maxAge    time.Duration
	launcher  Launcher
	logger    *logging.Logger
	metrics   metrics.Collector

	sf singleflight.Group
}

// NewReconciler creates a Reconciler, filling config defaults.
func NewReconciler(cfg Config) *Reconciler {
	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Launcher == nil {
		cfg.Launcher = ExecLauncher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	return &Reconciler{
		cachePath: cfg.CachePath,
		maxAge:    cfg.MaxAge,
		launcher:  cfg.Launcher,
		logger:    cfg.Logger.WithComponent("shellenv"),
		metrics:   cfg.Metrics,
	}
}

// CachePath returns the snapshot file path.
func (r *Reconciler) CachePath() string {
	return r.cachePath
}

// Ensure regenerates the snapshot when it is missing or stale. A fresh
// snapshot costs one file read; no shell is spawned. Capture failures are
// soft: they are logged and Ensure returns nil, because a missing snapshot
// must never block a host launch.
func (r *Reconciler) Ensure(ctx context.Context) error {
	if r.Fresh() {
		return nil
	}
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("shell env snapshot refresh failed: %v", err)
	}
	return nil
}

// Fresh reports whether the snapshot exists and is inside the freshness
// window.
func (r *Reconciler) Fresh() bool {
	age, ok := r.Age()
	return ok && age < r.maxAge
}

// Age returns the time elapsed since the snapshot was captured. The second
// return is false when the snapshot is missing or its timestamp is absent
// or unparsable. Only the timestamp key is inspected, not the whole
// document.
func (r *Reconciler) Age() (time.Duration, bool) {
	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		return 0, false
	}
	stamp := gjson.GetBytes(data, KeyUpdatedAt)
	if !stamp.Exists() {
		return 0, false
	}
	at, err := time.Parse(time.RFC3339, stamp.String())
	if err != nil {
		return 0, false
	}
	return time.Since(at), true
}

// Refresh captures the interactive shell environment and rewrites the
// snapshot. Concurrent callers share a single capture.
func (r *Reconciler) Refresh(ctx context.Context) error {
	_, err, _ := r.sf.Do("refresh", func() (any, error) {
		return nil, r.refresh(ctx)
	})
	return err
}

func (r *Reconciler) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	inv := DetectShell()
	r.logger.Debug("capturing shell environment via %s", inv.Name)

	out, err := r.launcher.Capture(ctx, inv)
	if err != nil {
		r.metrics.SnapshotRefresh(metrics.OutcomeError)
		return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	env := parseEnvOutput(out)
	if len(env) == 0 {
		r.metrics.SnapshotRefresh(metrics.OutcomeError)
		return ErrEmptyCapture
	}

	env[KeyUpdatedAt] = time.Now().Format(time.RFC3339)
	env[KeyFromIDE] = "true"

	if err := r.write(env); err != nil {
		r.metrics.SnapshotRefresh(metrics.OutcomeError)
		return err
	}
	r.metrics.SnapshotRefresh(metrics.OutcomeOK)
	r.logger.Info("shell env snapshot updated (%d variables)", len(env)-2)
	return nil
}

// write lands the snapshot atomically: temp file in the target directory,
// then rename. Concurrent writers race benignly; the last rename wins and
// either content is a valid snapshot.
func (r *Reconciler) write(env map[string]string) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(r.cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".shell-env-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.cachePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("activate snapshot: %w", err)
	}
	return nil
}

// LoadFiltered returns the allow-listed snapshot contents with reserved
// keys stripped. A missing snapshot is an empty map, not an error.
func (r *Reconciler) LoadFiltered() (map[string]string, error) {
	data, err := os.ReadFile(r.cachePath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var env map[string]string
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", r.cachePath, err)
	}
	delete(env, KeyUpdatedAt)
	delete(env, KeyFromIDE)
	return Filter(env), nil
}

// parseEnvOutput extracts KEY=VALUE pairs from shell output, dropping
// lines that do not look like assignments. Multi-line values lose their
// continuation lines; the allow-listed variables are all single-line.
func parseEnvOutput(out []byte) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		name := line[:eq]
		if !envNameRe.MatchString(name) {
			continue
		}
		env[name] = line[eq+1:]
	}
	return env
}
