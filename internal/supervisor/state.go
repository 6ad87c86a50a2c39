package supervisor

import "time"

// State is the reconciled classification of the pid file and the listening
// socket. The two observations are independent and possibly inconsistent;
// classification never trusts either alone.
type State string

const (
	// StateStopped: no pid file, no listener.
	StateStopped State = "stopped"
	// StateStarting: pid file present, process alive, listener not up yet.
	StateStarting State = "starting"
	// StateRunning: pid file present, process alive, listener active and
	// attributable to it.
	StateRunning State = "running"
	// StateStale: pid file present but the recorded process no longer exists.
	StateStale State = "stale"
	// StatePortConflict: a listener holds the bind address but cannot be
	// attributed to the recorded pid (or there is no pid file at all).
	StatePortConflict State = "port-conflict"
)

// Status is a read-only snapshot of the supervised process.
type Status struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	PID         int       `json:"pid,omitempty"`
	Bind        string    `json:"bind"`
	Listening   bool      `json:"listening"`
	ListenerPID int       `json:"listener_pid,omitempty"` // owner of the socket when attributable
	PIDFile     string    `json:"pid_file"`
	ObservedAt  time.Time `json:"observed_at"`
}

// StartResult is the outcome of a successful (or no-op) Start.
type StartResult struct {
	Status Status `json:"status"`
	// AlreadyRunning is informational, not an error: the process was up and
	// no new child was spawned.
	AlreadyRunning bool `json:"already_running"`
	// StaleRecovered reports that a leftover pid file for a dead process was
	// removed before starting.
	StaleRecovered bool `json:"stale_recovered"`
}
