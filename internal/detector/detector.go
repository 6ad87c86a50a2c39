// Package detector provides the two independent liveness observations the
// supervisor reconciles: does the recorded process exist, and is the bind
// address currently claimed by a listener. Neither is trusted alone; the
// pid file can be stale and the port can be held by a stranger.
package detector

// PIDAlive reports whether a process with the given pid exists. A pid the
// caller is not permitted to signal still counts as existing.
func PIDAlive(pid int) bool {
	return pidAlive(pid)
}

// ProcStartUnix returns the start time of pid as Unix seconds, or 0 when it
// cannot be determined. Used to detect pid reuse: a recorded pid whose
// current start time differs from the one persisted at spawn belongs to an
// unrelated process.
func ProcStartUnix(pid int) int64 {
	return getProcStartUnix(pid)
}
