// Package supervisor manages the lifecycle of exactly one long-running
// child process with duplicate-start prevention, stale pid file recovery,
// and port-collision detection. Each operation runs to completion in a
// short-lived invocation; the pid file and the bound port are the only state
// shared across invocations and both are re-read every time, never cached.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/solo/internal/detector"
	"github.com/loykin/solo/internal/logger"
	"github.com/loykin/solo/internal/osproc"
	"github.com/loykin/solo/internal/pidfile"
)

// Runner is the process-management capability. The real implementation is
// osproc.Runner; tests substitute fakes.
type Runner interface {
	SpawnDetached(spec osproc.LaunchSpec) (int, error)
	Alive(pid int) bool
	StartUnix(pid int) int64
	Terminate(pid int) error
	Kill(pid int) error
	FindByCommand(pattern string) []int
}

// PortProbe is the socket-listing capability: whether addr has an active
// listener and, where determinable, which pid owns it (0 when unknown).
type PortProbe interface {
	Listening(addr string) (bool, int, error)
}

// Supervisor drives the start/stop/restart/status state machine for one
// Spec. It holds no cross-invocation state of its own.
type Supervisor struct {
	spec   Spec
	runner Runner
	probe  PortProbe
	log    *slog.Logger
}

// New builds a Supervisor. Passing nil runner, probe, or log selects the
// real OS implementations and a discard logger.
func New(spec Spec, runner Runner, probe PortProbe, log *slog.Logger) (*Supervisor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.Normalize()
	if runner == nil {
		runner = osproc.Runner{}
	}
	if probe == nil {
		probe = detector.ListenerProbe{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{spec: spec, runner: runner, probe: probe, log: log}, nil
}

// Spec returns a copy of the supervised spec.
func (s *Supervisor) Spec() Spec { return s.spec }

// Status classifies current state from the pid file and the socket table.
// Read-only; never mutates either.
func (s *Supervisor) Status() (Status, error) {
	return s.observe()
}

// Start transitions to RUNNING. It is a no-op when the process already
// runs, recovers automatically from a stale pid file, and refuses to start
// over a foreign listener. The pid file is claimed with an exclusive create
// so concurrent starts cannot both spawn.
func (s *Supervisor) Start() (StartResult, error) {
	obs, err := s.observe()
	if err != nil {
		return StartResult{}, err
	}

	staleRecovered := false
	switch obs.State {
	case StateRunning:
		s.log.Info("already running", "name", s.spec.Name, "pid", obs.PID)
		return StartResult{Status: obs, AlreadyRunning: true}, nil
	case StatePortConflict:
		return StartResult{}, &PortConflictError{Addr: s.spec.Bind, OwnerPID: obs.ListenerPID}
	case StateStarting:
		// A live child from a previous start has not bound. Spawning another
		// would violate the singleton guarantee; the caller decides whether
		// to stop and retry.
		return StartResult{}, &StartError{Reason: ReasonPending, PID: obs.PID, LogTail: s.tail()}
	case StateStale:
		s.log.Warn("removing stale pid file", "name", s.spec.Name, "pid", obs.PID, "pid_file", s.spec.PIDFile)
		// Compare-and-delete: only remove the record that was observed. A
		// record committed by a concurrent invocation in between stays.
		removed, err := pidfile.RemoveIfPID(s.spec.PIDFile, obs.PID)
		if err != nil {
			return StartResult{}, err
		}
		if !removed {
			return StartResult{}, errors.New("pid file changed during stale recovery, another invocation is active")
		}
		staleRecovered = true
	}

	res, err := s.launch()
	res.StaleRecovered = staleRecovered
	return res, err
}

// launch claims the pid file and spawns the child, then waits for the
// listener within the grace period.
func (s *Supervisor) launch() (StartResult, error) {
	claim, err := pidfile.Acquire(s.spec.PIDFile)
	if errors.Is(err, pidfile.ErrClaimed) {
		// Lost the race against a concurrent start. Re-observe: if the
		// winner got the process up, this start is an idempotent success.
		obs, oerr := s.observe()
		if oerr == nil && obs.State == StateRunning {
			return StartResult{Status: obs, AlreadyRunning: true}, nil
		}
		return StartResult{}, fmt.Errorf("concurrent start in progress: %w", err)
	}
	if err != nil {
		return StartResult{}, err
	}

	childLog, err := s.spec.Log.OpenChildLog(s.spec.Name)
	if err != nil {
		claim.Abort()
		return StartResult{}, err
	}

	pid, err := s.runner.SpawnDetached(osproc.LaunchSpec{
		Command: s.spec.Command,
		WorkDir: s.spec.WorkDir,
		Env:     s.spec.Env,
		Log:     childLog,
	})
	if childLog != nil {
		// The child inherited the descriptor; this invocation's handle is done.
		_ = childLog.Close()
	}
	if err != nil {
		claim.Abort()
		return StartResult{}, &StartError{Reason: ReasonSpawnFailed, Err: err}
	}

	if err := claim.Commit(pidfile.Record{PID: pid, StartUnix: s.runner.StartUnix(pid)}); err != nil {
		// The child is up but untracked; surface loudly instead of killing it.
		s.log.Error("pid file write failed after spawn", "name", s.spec.Name, "pid", pid, "error", err)
		return StartResult{}, fmt.Errorf("process spawned (pid %d) but pid file write failed: %w", pid, err)
	}
	s.log.Info("spawned", "name", s.spec.Name, "pid", pid, "bind", s.spec.Bind)

	if err := s.awaitListener(pid); err != nil {
		// Keep the pid file for diagnosis: "failed to bind" must stay
		// distinguishable from "never started".
		return StartResult{}, err
	}

	obs, err := s.observe()
	if err != nil {
		return StartResult{}, err
	}
	s.log.Info("running", "name", s.spec.Name, "pid", pid, "bind", s.spec.Bind)
	return StartResult{Status: obs}, nil
}

// awaitListener polls the bind address until it is up, the child dies, or
// the grace period runs out.
func (s *Supervisor) awaitListener(pid int) error {
	deadline := time.Now().Add(s.spec.GracePeriod)
	for {
		listening, _, err := s.probe.Listening(s.spec.Bind)
		if err != nil {
			return err
		}
		if listening {
			return nil
		}
		if !s.runner.Alive(pid) {
			return &StartError{Reason: ReasonExitedEarly, PID: pid, LogTail: s.tail()}
		}
		if time.Now().After(deadline) {
			return &StartError{Reason: ReasonTimeout, PID: pid, LogTail: s.tail()}
		}
		time.Sleep(s.spec.PollInterval)
	}
}

// Stop transitions to STOPPED. Stopping an already-stopped process is
// success. The pid file is removed unconditionally, then a best-effort
// sweep terminates any leftover processes matching the launch command
// (worker subprocesses not covered by the recorded pid).
func (s *Supervisor) Stop() (Status, error) {
	rec, err := pidfile.Read(s.spec.PIDFile)
	switch {
	case err == nil:
		if s.runner.Alive(rec.PID) {
			s.log.Info("stopping", "name", s.spec.Name, "pid", rec.PID)
			_ = s.runner.Terminate(rec.PID)
			if !s.awaitExit(rec.PID) {
				s.log.Warn("escalating to kill", "name", s.spec.Name, "pid", rec.PID)
				_ = s.runner.Kill(rec.PID)
				s.awaitExit(rec.PID)
			}
		} else {
			s.log.Warn("recorded process already gone", "name", s.spec.Name, "pid", rec.PID)
		}
		if err := pidfile.Remove(s.spec.PIDFile); err != nil {
			return Status{}, err
		}
	case os.IsNotExist(err):
		// Nothing recorded; still sweep below in case of orphans.
	case errors.Is(err, pidfile.ErrInFlight):
		// Stop is a deliberate "make it stopped": an uncommitted claim is
		// discarded and anything it spawned falls to the sweep.
		s.log.Warn("discarding uncommitted pid file claim", "name", s.spec.Name)
		if rerr := pidfile.Remove(s.spec.PIDFile); rerr != nil {
			return Status{}, rerr
		}
	default:
		// Unreadable or corrupt pid file: remove it rather than leave
		// bookkeeping nobody can act on; the sweep covers the process.
		s.log.Warn("discarding unreadable pid file", "name", s.spec.Name, "error", err)
		if rerr := pidfile.Remove(s.spec.PIDFile); rerr != nil {
			return Status{}, rerr
		}
	}

	s.sweep()
	obs, err := s.observe()
	if err != nil {
		return Status{}, err
	}
	return obs, nil
}

// Restart is an unconditional Stop followed by Start.
func (s *Supervisor) Restart() (StartResult, error) {
	if _, err := s.Stop(); err != nil {
		return StartResult{}, err
	}
	return s.Start()
}

// awaitExit polls until the pid is gone or StopWait elapses.
func (s *Supervisor) awaitExit(pid int) bool {
	deadline := time.Now().Add(s.spec.StopWait)
	for time.Now().Before(deadline) {
		if !s.runner.Alive(pid) {
			return true
		}
		time.Sleep(s.spec.PollInterval)
	}
	return !s.runner.Alive(pid)
}

// sweep terminates remaining processes matching the launch command.
// Best-effort: failures here are logged, never returned.
func (s *Supervisor) sweep() {
	for _, pid := range s.runner.FindByCommand(s.spec.Command) {
		s.log.Warn("sweeping leftover process", "name", s.spec.Name, "pid", pid)
		_ = s.runner.Terminate(pid)
	}
}

// observe implements the liveness determination algorithm: read the pid
// file, probe process existence, and independently check the listener, then
// reconcile. A listener that cannot be attributed to the recorded pid takes
// precedence over everything else, because a foreign owner of the address
// must block a fresh start.
func (s *Supervisor) observe() (Status, error) {
	st := Status{
		Name:       s.spec.Name,
		Bind:       s.spec.Bind,
		PIDFile:    s.spec.PIDFile,
		ObservedAt: time.Now(),
	}

	havePID := false
	alive := false
	claimInFlight := false
	rec, err := pidfile.Read(s.spec.PIDFile)
	switch {
	case err == nil:
		havePID = true
		st.PID = rec.PID
		alive = s.runner.Alive(rec.PID)
		if alive && rec.StartUnix > 0 {
			if cur := s.runner.StartUnix(rec.PID); cur > 0 && cur != rec.StartUnix {
				// PID recycled by an unrelated process.
				alive = false
			}
		}
	case errors.Is(err, pidfile.ErrInFlight):
		// Another invocation claimed the file and is between spawn and
		// commit right now. Its claim must never look removable.
		havePID = true
		claimInFlight = true
	case os.IsNotExist(err):
		// no record
	default:
		// Corrupt content or unreadable file: the record exists but cannot
		// be trusted, which is the definition of stale bookkeeping.
		s.log.Warn("unreadable pid file", "pid_file", s.spec.PIDFile, "error", err)
		havePID = true
	}

	listening, owner, err := s.probe.Listening(s.spec.Bind)
	if err != nil {
		return Status{}, err
	}
	st.Listening = listening
	st.ListenerPID = owner

	switch {
	case listening && havePID && alive && (owner == 0 || owner == rec.PID):
		// owner == 0 means the table did not expose the socket owner; with a
		// live recorded process the benefit of the doubt goes to it.
		st.State = StateRunning
	case claimInFlight:
		st.State = StateStarting
	case listening:
		st.State = StatePortConflict
	case havePID && alive:
		st.State = StateStarting
	case havePID:
		st.State = StateStale
	default:
		st.State = StateStopped
	}
	return st, nil
}

// tail reads the last lines of the child log for error reports.
func (s *Supervisor) tail() []string {
	path := s.spec.Log.ChildLogPath(s.spec.Name)
	if path == "" {
		return nil
	}
	lines, err := logger.TailLines(path, s.spec.LogTailLines)
	if err != nil {
		return nil
	}
	return lines
}
