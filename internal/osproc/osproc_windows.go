//go:build windows

package osproc

import (
	"os"
	"os/exec"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// configureDetached is a no-op on Windows; the child is already independent
// of the console once the supervisor exits.
func configureDetached(cmd *exec.Cmd) {}

func terminate(pid int) error {
	return signalWindows(pid, false)
}

func kill(pid int) error {
	return signalWindows(pid, true)
}

// signalWindows approximates Unix group signaling: Terminate for a gone
// process is success, and there is no graceful TERM so both paths end in
// process termination.
func signalWindows(pid int, force bool) error {
	if pid <= 0 {
		return nil
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	if force {
		return p.Kill()
	}
	if err := p.Terminate(); err != nil {
		return p.Kill()
	}
	return nil
}

func getShellCommand(script string) *exec.Cmd {
	comspec := os.Getenv("COMSPEC")
	if comspec == "" {
		comspec = "cmd.exe"
	}
	// #nosec G204
	return exec.Command(comspec, "/C", script)
}

func getTrueCommand() *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd.exe", "/C", "exit 0")
}
