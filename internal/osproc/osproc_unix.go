//go:build !windows

package osproc

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureDetached starts the child in a new session (setsid) so it is
// detached from the controlling terminal and survives the supervisor's exit.
// A new session implies a new process group, which group signaling relies on.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func terminate(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

func kill(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

// signalGroup signals the whole process group, falling back to the single
// pid when the group is gone. ESRCH is success: the process already exited.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := syscall.Kill(-pid, sig)
	if err != nil && errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, sig)
	}
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func getShellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/sh", "-c", script)
}

func getTrueCommand() *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/true")
}
