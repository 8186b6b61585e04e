//go:build windows

package host

import "os/exec"

func configureProcAttr(cmd *exec.Cmd) {}

// terminateProcess has no graceful signal to send on Windows, so the
// grace period collapses into an immediate kill.
func terminateProcess(h *ProcessHandle) error {
	return killProcess(h)
}

func killProcess(h *ProcessHandle) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
