package shellenv

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Invocation is a shell command line that dumps the shell's environment,
// one KEY=VALUE pair per line.
type Invocation struct {
	Name string
	Args []string
}

// powershellDump prints env vars in KEY=VALUE form.
const powershellDump = `Get-ChildItem env: | ForEach-Object { "$($_.Name)=$($_.Value)" }`

// DetectShell picks the user's shell from environment hints and returns
// the invocation that captures its interactive login environment.
//
// Unix shells run with -l -i so profile and rc files apply, matching what
// the user sees in a terminal. On windows the hint is ComSpec.
func DetectShell() Invocation {
	if runtime.GOOS == "windows" {
		comspec := strings.ToLower(filepath.Base(os.Getenv("ComSpec")))
		if strings.Contains(comspec, "powershell") || strings.Contains(comspec, "pwsh") {
			return Invocation{Name: os.Getenv("ComSpec"), Args: []string{"-NoProfile", "-Command", powershellDump}}
		}
		name := os.Getenv("ComSpec")
		if name == "" {
			name = "cmd.exe"
		}
		return Invocation{Name: name, Args: []string{"/c", "set"}}
	}

	shell := os.Getenv("SHELL")
	if strings.Contains(filepath.Base(shell), "zsh") {
		return Invocation{Name: shell, Args: []string{"-l", "-i", "-c", "env"}}
	}
	if shell == "" {
		shell = "/bin/bash"
	}
	return Invocation{Name: shell, Args: []string{"-l", "-i", "-c", "env"}}
}

// Launcher executes a shell invocation and returns its stdout. Swappable
// so tests can observe whether a shell was spawned at all.
type Launcher interface {
	Capture(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecLauncher runs invocations with os/exec.
type ExecLauncher struct{}

// Capture runs the invocation and returns its stdout. Stderr is ignored;
// interactive shells commonly print banners there.
func (ExecLauncher) Capture(ctx context.Context, inv Invocation) ([]byte, error) {
	return exec.CommandContext(ctx, inv.Name, inv.Args...).Output()
}
