package node

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeRuntime drops an executable placeholder at dir/bin/node.
func fakeRuntime(t *testing.T, dir string) string {
	t.Helper()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(binDir, ExecName())
	if err := os.WriteFile(p, []byte("#!/bin/sh\necho v20.6.0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLocatorTierOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix layout")
	}

	bundled := t.TempDir()
	install := t.TempDir()
	bundledBin := fakeRuntime(t, bundled)
	installBin := fakeRuntime(t, install)

	loc := NewLocator(bundled, install)
	loc.lookPath = func(string) (string, error) { return "/usr/bin/node", nil }

	got, err := loc.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != bundledBin {
		t.Errorf("Resolve() = %q, want bundled %q", got, bundledBin)
	}

	// Without a bundled runtime the install dir wins over PATH.
	loc = NewLocator("", install)
	loc.lookPath = func(string) (string, error) { return "/usr/bin/node", nil }
	got, err = loc.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != installBin {
		t.Errorf("Resolve() = %q, want install %q", got, installBin)
	}
}

func TestLocatorFallsBackToPath(t *testing.T) {
	loc := NewLocator("", t.TempDir())
	loc.lookPath = func(name string) (string, error) {
		if name != ExecName() {
			t.Errorf("lookPath called with %q", name)
		}
		return "/opt/node/bin/node", nil
	}

	got, err := loc.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != "/opt/node/bin/node" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestLocatorAllTiersMiss(t *testing.T) {
	loc := NewLocator("", t.TempDir())
	loc.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := loc.Resolve()
	if !errors.Is(err, ErrRuntimeNotFound) {
		t.Errorf("Resolve() error = %v, want ErrRuntimeNotFound", err)
	}
}

func TestLocatorIgnoresNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are unix-only")
	}

	install := t.TempDir()
	binDir := filepath.Join(install, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "node"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	loc := NewLocator("", install)
	loc.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	if _, err := loc.Resolve(); !errors.Is(err, ErrRuntimeNotFound) {
		t.Errorf("non-executable file resolved: %v", err)
	}
}

func TestDefaultInstallDirNotEmpty(t *testing.T) {
	if DefaultInstallDir() == "" {
		t.Error("DefaultInstallDir() returned empty path")
	}
}
