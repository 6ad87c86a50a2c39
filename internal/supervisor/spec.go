package supervisor

import (
	"errors"
	"time"

	"github.com/loykin/solo/internal/logger"
)

// Defaults applied by Normalize.
const (
	DefaultGracePeriod  = 5 * time.Second
	DefaultStopWait     = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultLogTailLines = 20
)

// Spec describes the single process under supervision. The bind address is
// an independent liveness signal: the child is only considered up once a
// listener is present there.
type Spec struct {
	Name         string        `json:"name"`
	Command      string        `json:"command"`       // launch invocation (shell-aware)
	WorkDir      string        `json:"work_dir"`      // optional working dir
	Env          []string      `json:"env"`           // child environment; nil inherits
	PIDFile      string        `json:"pid_file"`      // pid file path
	Bind         string        `json:"bind"`          // host:port the child must listen on
	GracePeriod  time.Duration `json:"grace_period"`  // bounded wait for the listener
	StopWait     time.Duration `json:"stop_wait"`     // wait after TERM before KILL
	PollInterval time.Duration `json:"poll_interval"` // listener poll granularity
	LogTailLines int           `json:"log_tail_lines"`
	Log          logger.Config `json:"log"`
}

// Normalize fills zero-valued tunables with defaults.
func (s *Spec) Normalize() {
	if s.GracePeriod <= 0 {
		s.GracePeriod = DefaultGracePeriod
	}
	if s.StopWait <= 0 {
		s.StopWait = DefaultStopWait
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.LogTailLines <= 0 {
		s.LogTailLines = DefaultLogTailLines
	}
}

// Validate checks the fields without defaults.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return errors.New("spec: name is required")
	}
	if s.Command == "" {
		return errors.New("spec: command is required")
	}
	if s.PIDFile == "" {
		return errors.New("spec: pid_file is required")
	}
	if s.Bind == "" {
		return errors.New("spec: bind is required")
	}
	return nil
}
