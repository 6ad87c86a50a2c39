package supervisor

import (
	"fmt"
	"strings"
)

// StartFailureReason discriminates the ways Start can fail. Callers branch
// on it (and on *PortConflictError) programmatically; exit codes and
// messages derive from it, never the other way around.
type StartFailureReason string

const (
	// ReasonSpawnFailed: the launch command could not be started at all.
	ReasonSpawnFailed StartFailureReason = "spawn-failed"
	// ReasonExitedEarly: the child started but died before binding.
	ReasonExitedEarly StartFailureReason = "exited-early"
	// ReasonTimeout: the child is alive but never bound within the grace period.
	ReasonTimeout StartFailureReason = "timeout"
	// ReasonPending: a previous start's child is alive but not yet (or no
	// longer able to be) listening; nothing was spawned.
	ReasonPending StartFailureReason = "start-pending"
)

// PortConflictError reports that the bind address is held by a process the
// supervisor does not own. Start refuses to touch the foreign process.
type PortConflictError struct {
	Addr     string
	OwnerPID int // 0 when the socket owner could not be determined
}

func (e *PortConflictError) Error() string {
	if e.OwnerPID > 0 {
		return fmt.Sprintf("bind address %s is already in use by pid %d", e.Addr, e.OwnerPID)
	}
	return fmt.Sprintf("bind address %s is already in use by an unknown process", e.Addr)
}

// StartError reports a failed start, carrying the child pid (when one was
// spawned, its pid file is left in place for diagnosis) and the tail of the
// child log.
type StartError struct {
	Reason  StartFailureReason
	PID     int
	LogTail []string
	Err     error
}

func (e *StartError) Error() string {
	var b strings.Builder
	switch e.Reason {
	case ReasonSpawnFailed:
		b.WriteString("failed to spawn process")
	case ReasonExitedEarly:
		fmt.Fprintf(&b, "process (pid %d) exited before binding", e.PID)
	case ReasonTimeout:
		fmt.Fprintf(&b, "process (pid %d) did not bind within the grace period", e.PID)
	case ReasonPending:
		fmt.Fprintf(&b, "process (pid %d) is alive but not listening; previous start pending or failed", e.PID)
	default:
		b.WriteString("start failed")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.LogTail) > 0 {
		b.WriteString("\nlast log lines:\n  ")
		b.WriteString(strings.Join(e.LogTail, "\n  "))
	}
	return b.String()
}

func (e *StartError) Unwrap() error { return e.Err }
