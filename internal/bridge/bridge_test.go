package bridge

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/hostbridge/internal/command"
	"github.com/dshills/hostbridge/internal/config"
	"github.com/dshills/hostbridge/internal/host"
	"github.com/dshills/hostbridge/internal/node"
	"github.com/dshills/hostbridge/internal/shellenv"
)

// fakeNodeScript stands in for the node binary: answers the version probe,
// then crashes or idles per FAKENODE_MODE.
const fakeNodeScript = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "v%s"
  exit 0
fi
echo "host up"
if [ "$FAKENODE_MODE" = "crash" ]; then
  exit 7
fi
trap 'exit 0' TERM
while :; do sleep 0.05; done
`

// syncWriter is a goroutine-safe log sink.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// writeFakeNode lays out a bundled-runtime directory whose bin/node is a
// shell script reporting the given version.
func writeFakeNode(t *testing.T, version string) string {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	script := fmt.Sprintf(fakeNodeScript, version)
	if err := os.WriteFile(filepath.Join(bin, "node"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeHostPayload(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("//"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeBridgeConfig(t *testing.T, payload, bundled, snapshot, level string) string {
	t.Helper()
	content := fmt.Sprintf(`
[runtime]
min_version = "20.6.0"
payload_dir = %q
bundled_dir = %q
install_dir = %q

[env]
snapshot_path = %q

[log]
level = %q
`, payload, bundled, filepath.Join(t.TempDir(), "install"), snapshot, level)

	path := filepath.Join(t.TempDir(), "hostbridge.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// primeSnapshot writes a fresh shell env snapshot so no test ever spawns a
// real login shell.
func primeSnapshot(t *testing.T, path string) {
	t.Helper()
	snap := map[string]string{
		"JAVA_HOME":           "/opt/test-jdk",
		shellenv.KeyUpdatedAt: time.Now().Format(time.RFC3339),
		shellenv.KeyFromIDE:   "true",
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

type testEnv struct {
	payload  string
	bundled  string
	snapshot string
}

func newTestBridge(t *testing.T, level string, mutate func(*Options)) (*Bridge, *syncWriter, testEnv) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runtime needs a POSIX shell")
	}

	env := testEnv{
		payload:  writeHostPayload(t),
		bundled:  writeFakeNode(t, "20.11.1"),
		snapshot: filepath.Join(t.TempDir(), "shell-env.json"),
	}
	buf := &syncWriter{}
	opts := Options{
		ConfigPath: writeBridgeConfig(t, env.payload, env.bundled, env.snapshot, level),
		LogOutput:  buf,
	}
	if mutate != nil {
		mutate(&opts)
	}

	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, buf, env
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// nodeArchive builds a dist-shaped tar.gz whose bin/node is the fake
// runtime script reporting the given version.
func nodeArchive(t *testing.T, version string) []byte {
	t.Helper()
	script := fmt.Sprintf(fakeNodeScript, version)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	root := "node-v" + version + "-test/"
	for _, hdr := range []*tar.Header{
		{Name: root, Typeflag: tar.TypeDir, Mode: 0o755},
		{Name: root + "bin/", Typeflag: tar.TypeDir, Mode: 0o755},
		{Name: root + "bin/node", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(script))},
	} {
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(script)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewWiresComponents(t *testing.T) {
	b, _, env := newTestBridge(t, "debug", nil)

	if b.SessionID() == "" {
		t.Error("SessionID() is empty")
	}
	if b.Config().Runtime.PayloadDir != env.payload {
		t.Errorf("PayloadDir = %q, want %q", b.Config().Runtime.PayloadDir, env.payload)
	}
	if b.Manager() == nil || b.Dispatcher() == nil || b.Reconciler() == nil || b.Installer() == nil {
		t.Fatal("component accessor returned nil")
	}
	if b.Reconciler().CachePath() != env.snapshot {
		t.Errorf("snapshot path = %q, want %q", b.Reconciler().CachePath(), env.snapshot)
	}
	for _, id := range []string{"bridge.status", "bridge.commands"} {
		if !b.Dispatcher().Registry().Has(id) {
			t.Errorf("builtin %s not registered", id)
		}
	}
}

func TestNewBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostbridge.toml")
	if err := os.WriteFile(path, []byte("[runtime\nmin_version ="), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(Options{ConfigPath: path})
	var ierr *InitError
	if !errors.As(err, &ierr) {
		t.Fatalf("New() error = %v, want *InitError", err)
	}
	if ierr.Component != "config" {
		t.Errorf("Component = %q, want config", ierr.Component)
	}
	var perr *config.ParseError
	if !errors.As(err, &perr) {
		t.Error("InitError should unwrap to the config ParseError")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	b, buf, env := newTestBridge(t, "debug", nil)
	primeSnapshot(t, env.snapshot)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(ctx, host.SocketTransport{Path: filepath.Join(t.TempDir(), "hb.sock")})
	}()

	waitFor(t, 5*time.Second, "host running", func() bool {
		return b.Manager().IsRunning()
	})
	if !b.IsRunning() {
		t.Error("IsRunning() = false while Run is blocked")
	}

	res := b.Dispatcher().Execute(context.Background(), "bridge.status", nil)
	if res.Status != command.StatusOK {
		t.Fatalf("bridge.status result = %+v", res)
	}
	rep, ok := res.Value.(StatusReport)
	if !ok {
		t.Fatalf("bridge.status value = %T", res.Value)
	}
	if rep.Host != "running" || rep.PID <= 0 {
		t.Errorf("status = %+v, want running with a pid", rep)
	}
	if !rep.EnvFresh {
		t.Error("primed snapshot should report fresh")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if b.Manager().IsRunning() || b.IsRunning() {
		t.Error("still running after Run returned")
	}
	if !strings.Contains(buf.String(), "host stopped") {
		t.Error("teardown did not stop the host")
	}
}

func TestRunReportsHostCrash(t *testing.T) {
	t.Setenv("FAKENODE_MODE", "crash")
	b, _, env := newTestBridge(t, "debug", nil)
	primeSnapshot(t, env.snapshot)

	err := b.Run(context.Background(), host.SocketTransport{Path: filepath.Join(t.TempDir(), "hb.sock")})

	var hee *HostExitError
	if !errors.As(err, &hee) {
		t.Fatalf("Run() error = %v, want *HostExitError", err)
	}
	if hee.Code != 7 {
		t.Errorf("Code = %d, want 7", hee.Code)
	}
	if b.IsRunning() {
		t.Error("IsRunning() = true after Run returned")
	}
}

func TestRunWhileRunning(t *testing.T) {
	b, _, env := newTestBridge(t, "debug", nil)
	primeSnapshot(t, env.snapshot)

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(context.Background(), host.SocketTransport{Path: filepath.Join(t.TempDir(), "hb.sock")})
	}()
	waitFor(t, 5*time.Second, "host running", func() bool {
		return b.Manager().IsRunning()
	})

	if err := b.Run(context.Background(), host.SocketTransport{Path: "/tmp/other.sock"}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	b.Shutdown()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	b, _, env := newTestBridge(t, "debug", nil)
	primeSnapshot(t, env.snapshot)

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(context.Background(), host.SocketTransport{Path: filepath.Join(t.TempDir(), "hb.sock")})
	}()
	waitFor(t, 5*time.Second, "host running", func() bool {
		return b.Manager().IsRunning()
	})

	b.Shutdown()
	b.Shutdown()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestRunStartFailure(t *testing.T) {
	b, _, env := newTestBridge(t, "debug", nil)
	primeSnapshot(t, env.snapshot)
	// Break the payload after New so only Start fails.
	if err := os.Remove(filepath.Join(env.payload, "index.js")); err != nil {
		t.Fatal(err)
	}

	err := b.Run(context.Background(), host.SocketTransport{Path: "/tmp/hb-fail.sock"})

	var sf *host.StartFailure
	if !errors.As(err, &sf) {
		t.Fatalf("Run() error = %v, want *host.StartFailure", err)
	}
	if b.IsRunning() {
		t.Error("IsRunning() = true after failed Run")
	}
}

func TestRunProvisionsRuntimeFromMirror(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake runtime needs a POSIX shell")
	}
	hideSystemNode(t)

	archive := nodeArchive(t, "20.11.1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write(archive)
		}
	}))
	defer srv.Close()

	payload := writeHostPayload(t)
	manifest := fmt.Sprintf("version: 20.11.1\nmirror: %s\narchives:\n  %s: node.tar.gz\n",
		srv.URL, node.PlatformKey(runtime.GOOS, runtime.GOARCH))
	if err := os.WriteFile(filepath.Join(payload, node.ManifestName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	snapshot := filepath.Join(t.TempDir(), "shell-env.json")
	primeSnapshot(t, snapshot)
	buf := &syncWriter{}
	b, err := New(Options{
		ConfigPath: writeBridgeConfig(t, payload, "", snapshot, "debug"),
		LogOutput:  buf,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(ctx, host.SocketTransport{Path: filepath.Join(t.TempDir(), "hb.sock")})
	}()

	waitFor(t, 10*time.Second, "host running on the downloaded runtime", func() bool {
		return b.Manager().IsRunning()
	})
	if !strings.Contains(buf.String(), "runtime installed") {
		t.Error("provisioning was never logged")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBuiltinStatusWhileStopped(t *testing.T) {
	b, _, _ := newTestBridge(t, "debug", nil)

	res := b.Dispatcher().Execute(context.Background(), "bridge.status", nil)
	if res.Status != command.StatusOK {
		t.Fatalf("result = %+v", res)
	}
	rep := res.Value.(StatusReport)
	if rep.Host != "stopped" {
		t.Errorf("Host = %q, want stopped", rep.Host)
	}
	if rep.PID != 0 {
		t.Errorf("PID = %d, want 0", rep.PID)
	}
	if rep.SessionID != b.SessionID() {
		t.Errorf("SessionID = %q, want %q", rep.SessionID, b.SessionID())
	}
	if rep.Commands != 2 {
		t.Errorf("Commands = %d, want 2 builtins", rep.Commands)
	}
}

func TestBuiltinCommandsLists(t *testing.T) {
	b, _, _ := newTestBridge(t, "debug", nil)

	res := b.Dispatcher().Execute(context.Background(), "bridge.commands", nil)
	ids, ok := res.Value.([]string)
	if !ok {
		t.Fatalf("value = %T", res.Value)
	}
	want := []string{"bridge.commands", "bridge.status"}
	if !sort.StringsAreSorted(ids) || len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestApplyConfigRetunesLogLevel(t *testing.T) {
	b, buf, _ := newTestBridge(t, "info", nil)

	b.Logger().Debug("hidden line")
	if strings.Contains(buf.String(), "hidden line") {
		t.Fatal("debug line appeared at info level")
	}

	cfg := b.Config()
	cfg.Log.Level = "debug"
	b.applyConfig(cfg)

	b.Logger().Debug("visible line")
	if !strings.Contains(buf.String(), "visible line") {
		t.Error("reloaded level did not reach the bridge logger")
	}
}

func TestApplyConfigRespectsPinnedLevel(t *testing.T) {
	b, buf, _ := newTestBridge(t, "debug", func(o *Options) {
		o.LogLevel = "error"
	})

	cfg := b.Config()
	cfg.Log.Level = "debug"
	b.applyConfig(cfg)

	b.Logger().Debug("should stay hidden")
	if strings.Contains(buf.String(), "should stay hidden") {
		t.Error("config reload overrode the pinned log level")
	}
}
