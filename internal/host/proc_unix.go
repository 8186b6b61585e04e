//go:build !windows

package host

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcAttr places the child in its own process group so that
// terminate and kill reach the whole extension host tree, not just the
// node process itself.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess asks the child's process group to exit gracefully.
func terminateProcess(h *ProcessHandle) error {
	pid := h.PID()
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

// killProcess force-kills the child's process group.
func killProcess(h *ProcessHandle) error {
	pid := h.PID()
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}
