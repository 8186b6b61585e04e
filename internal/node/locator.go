package node

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Locator resolves a Node.js interpreter path without touching the network.
//
// Search order: a runtime bundled with the payload, then the user-local
// install directory this bridge installs into, then the system PATH.
type Locator struct {
	// BundledDir is the directory of a runtime shipped inside the payload.
	// Empty when the distribution carries no bundled runtime.
	BundledDir string

	// InstallDir is the user-local install directory. Empty selects the
	// per-OS default from DefaultInstallDir.
	InstallDir string

	// lookPath is swappable for tests. Defaults to exec.LookPath.
	lookPath func(string) (string, error)
}

// NewLocator returns a Locator over the given bundled and install dirs.
func NewLocator(bundledDir, installDir string) *Locator {
	if installDir == "" {
		installDir = DefaultInstallDir()
	}
	return &Locator{
		BundledDir: bundledDir,
		InstallDir: installDir,
		lookPath:   exec.LookPath,
	}
}

// DefaultInstallDir returns the per-OS user-local runtime directory.
func DefaultInstallDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "hostbridge", "node")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "hostbridge", "node")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "hostbridge", "node")
	}
}

// ExecName returns the interpreter binary name for this OS.
func ExecName() string {
	if runtime.GOOS == "windows" {
		return "node.exe"
	}
	return "node"
}

// binaryIn returns the expected interpreter path under an install root.
// Unix distributions place the binary under bin/; windows zips are flat.
func binaryIn(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, ExecName())
	}
	return filepath.Join(root, "bin", ExecName())
}

// Resolve returns the first usable interpreter path, or ErrRuntimeNotFound
// when every tier misses.
func (l *Locator) Resolve() (string, error) {
	for _, dir := range []string{l.BundledDir, l.InstallDir} {
		if dir == "" {
			continue
		}
		p := binaryIn(dir)
		if isExecutable(p) {
			return p, nil
		}
		// Some bundles place the binary at the root regardless of OS.
		p = filepath.Join(dir, ExecName())
		if isExecutable(p) {
			return p, nil
		}
	}

	look := l.lookPath
	if look == nil {
		look = exec.LookPath
	}
	if p, err := look(ExecName()); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("%w (bundled=%q install=%q path)", ErrRuntimeNotFound, l.BundledDir, l.InstallDir)
}

// isExecutable reports whether path is a regular file the current user may
// execute. On windows the check is extension-based.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		ext := strings.ToLower(filepath.Ext(path))
		return ext == ".exe" || ext == ".cmd" || ext == ".bat"
	}
	return info.Mode()&0111 != 0
}
