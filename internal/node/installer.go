package node

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dshills/hostbridge/internal/logging"
	"github.com/dshills/hostbridge/internal/metrics"
)

// Default network limits for mirror access.
const (
	DefaultProbeConnectTimeout = 3 * time.Second
	DefaultProbeTotalTimeout   = 5 * time.Second
	DefaultDownloadTimeout     = 5 * time.Minute
)

// Installer provisions a Node.js runtime when the Locator cannot resolve
// one. Lite distributions download from the mirror named in the payload's
// runtime manifest; full distributions run a bundled offline installer.
type Installer struct {
	Locator    *Locator
	PayloadDir string

	// ProbeConnectTimeout bounds connection establishment for the mirror
	// reachability probe. ProbeTotalTimeout bounds the whole probe.
	ProbeConnectTimeout time.Duration
	ProbeTotalTimeout   time.Duration
	// DownloadTimeout bounds the archive download.
	DownloadTimeout time.Duration

	logger  *logging.Logger
	metrics metrics.Collector
}

// NewInstaller returns an Installer with default network limits.
func NewInstaller(loc *Locator, payloadDir string, logger *logging.Logger, col metrics.Collector) *Installer {
	if logger == nil {
		logger = logging.Default()
	}
	if col == nil {
		col = metrics.Nop()
	}
	return &Installer{
		Locator:             loc,
		PayloadDir:          payloadDir,
		ProbeConnectTimeout: DefaultProbeConnectTimeout,
		ProbeTotalTimeout:   DefaultProbeTotalTimeout,
		DownloadTimeout:     DefaultDownloadTimeout,
		logger:              logger.WithComponent("node"),
		metrics:             col,
	}
}

// Ensure returns a usable interpreter path, installing one if necessary.
// A runtime that already resolves is returned as-is; no network traffic,
// no reinstall.
func (i *Installer) Ensure(ctx context.Context) (string, error) {
	if p, err := i.Locator.Resolve(); err == nil {
		return p, nil
	}

	if err := i.install(ctx); err != nil {
		i.metrics.RuntimeInstall(metrics.OutcomeError)
		return "", err
	}
	i.metrics.RuntimeInstall(metrics.OutcomeOK)

	p, err := i.Locator.Resolve()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInstallIncomplete, err)
	}
	i.logger.Info("runtime installed at %s", p)
	return p, nil
}

// install picks the provisioning mechanism the payload ships.
// The offline installer wins when both are present.
func (i *Installer) install(ctx context.Context) error {
	if script := FindInstaller(i.PayloadDir, runtime.GOOS); script != "" {
		return i.runOfflineInstaller(ctx, script)
	}
	if mpath := FindManifest(i.PayloadDir); mpath != "" {
		m, err := LoadManifest(mpath)
		if err != nil {
			return err
		}
		return i.installFromMirror(ctx, m)
	}
	return ErrNoManifest
}

// Probe checks mirror reachability with a HEAD request. Any failure,
// including timeout, is treated as unreachable.
func (i *Installer) Probe(ctx context.Context, url string) error {
	dialer := &net.Dialer{Timeout: i.ProbeConnectTimeout}
	client := &http.Client{
		Timeout: i.ProbeTotalTimeout,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
			Proxy:       http.ProxyFromEnvironment,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorUnreachable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d for %s", ErrMirrorUnreachable, resp.StatusCode, url)
	}
	return nil
}

// installFromMirror probes, downloads, and unpacks the platform archive
// into a staging directory, then swaps it into place.
func (i *Installer) installFromMirror(ctx context.Context, m *Manifest) error {
	name, err := m.ArchiveFor(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	url := m.ArchiveURL(name)

	if err := i.Probe(ctx, url); err != nil {
		return err
	}
	i.logger.Info("downloading runtime from %s", url)

	client := &http.Client{Timeout: i.DownloadTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	staging := i.Locator.InstallDir + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	if strings.HasSuffix(name, ".zip") {
		err = i.downloadZip(resp.Body, name, staging)
	} else {
		err = extractTarGz(resp.Body, staging)
	}
	if err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("unpack %s: %w", name, err)
	}

	if !isExecutable(binaryIn(staging)) {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("unpack %s: %w", name, ErrInstallIncomplete)
	}

	if err := os.RemoveAll(i.Locator.InstallDir); err != nil {
		return fmt.Errorf("replace old install: %w", err)
	}
	if err := os.Rename(staging, i.Locator.InstallDir); err != nil {
		return fmt.Errorf("activate new install: %w", err)
	}
	return nil
}

// downloadZip buffers the body to disk first; zip needs random access.
func (i *Installer) downloadZip(body io.Reader, name, staging string) error {
	tmp, err := os.CreateTemp("", "hostbridge-node-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("buffer %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return extractZip(tmp.Name(), staging)
}

// runOfflineInstaller executes the payload's installer script synchronously,
// streaming its output into the log. The target directory is passed as the
// script's only argument.
func (i *Installer) runOfflineInstaller(ctx context.Context, script string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", script, i.Locator.InstallDir)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", script, i.Locator.InstallDir)
	}
	cmd.Dir = i.PayloadDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("installer stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	i.logger.Info("running offline installer %s", filepath.Base(script))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start installer: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		i.logger.Info("installer: %s", scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("installer failed: %w", err)
	}
	return nil
}
