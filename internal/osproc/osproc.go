// Package osproc is the OS-level process capability behind the supervisor:
// detached spawning, existence probing, termination, and a cmdline scan used
// by the post-stop sweep. Everything here is stateless; the pid file is the
// only bookkeeping and it lives elsewhere.
package osproc

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/solo/internal/detector"
)

// LaunchSpec carries the parameters needed to spawn the child.
type LaunchSpec struct {
	Command string   // shell-aware command string
	WorkDir string   // optional working directory
	Env     []string // full child environment; nil inherits the supervisor's
	Log     *os.File // append-mode file for stdout/stderr; nil means /dev/null
}

// Runner is the real implementation of the supervisor's process capability.
type Runner struct{}

// SpawnDetached launches the command in its own session so it survives the
// supervisor's exit, and returns the child pid. The log file descriptor is
// inherited directly; no in-process copying, the supervisor is about to
// exit.
func (Runner) SpawnDetached(spec LaunchSpec) (int, error) {
	cmd := BuildCommand(spec.Command)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	configureDetached(cmd)

	if spec.Log != nil {
		cmd.Stdout = spec.Log
		cmd.Stderr = spec.Log
	} else {
		null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
		}
		defer func() { _ = null.Close() }()
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn %q: %w", spec.Command, err)
	}
	pid := cmd.Process.Pid
	// Drop the handle; the child is intentionally not reaped by this
	// invocation. init (or the session) takes over.
	_ = cmd.Process.Release()
	return pid, nil
}

// Alive reports whether pid refers to an existing process.
func (Runner) Alive(pid int) bool {
	return detector.PIDAlive(pid)
}

// StartUnix returns the start time of pid in Unix seconds, 0 when unknown.
func (Runner) StartUnix(pid int) int64 {
	return detector.ProcStartUnix(pid)
}

// Terminate sends the graceful termination signal to the child's process
// group (falling back to the single pid). A process that is already gone is
// not an error; stopping a stopped service is success.
func (Runner) Terminate(pid int) error {
	return terminate(pid)
}

// Kill force-kills the child's process group.
func (Runner) Kill(pid int) error {
	return kill(pid)
}

// FindByCommand returns pids of processes whose command line contains
// pattern, excluding the calling process. It backs the best-effort sweep
// for worker subprocesses that the single recorded pid does not cover.
func (Runner) FindByCommand(pattern string) []int {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil
	}
	self := os.Getpid()
	var out []int
	for _, p := range procs {
		if int(p.Pid) == self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, pattern) {
			out = append(out, int(p.Pid))
		}
	}
	return out
}

// BuildCommand constructs an *exec.Cmd for a command string. It avoids
// invoking a shell when not necessary, and it respects an explicit shell
// invocation already present (e.g. "sh -c 'echo hi'") without wrapping it
// in another layer.
func BuildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return getTrueCommand()
	}
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		return getShellCommand(afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return getShellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>"
// at the beginning of cmdStr. It returns (shellPath, afterCArg, true) when
// matched, preserving the substring after "-c " verbatim to avoid breaking
// quoting.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return strings.Fields(p)[0], after, true
		}
	}
	return "", "", false
}
