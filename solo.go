// Package solo supervises a single long-running process on the local host:
// start, stop, restart, and status with duplicate-start prevention, stale
// pid file recovery, and port-collision detection.
package solo

import (
	"log/slog"

	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/logger"
	"github.com/loykin/solo/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = supervisor.Spec

type Status = supervisor.Status

type State = supervisor.State

type StartResult = supervisor.StartResult

type LogConfig = logger.Config

const (
	StateStopped      = supervisor.StateStopped
	StateStarting     = supervisor.StateStarting
	StateRunning      = supervisor.StateRunning
	StateStale        = supervisor.StateStale
	StatePortConflict = supervisor.StatePortConflict
)

// Error types callers branch on programmatically.

type PortConflictError = supervisor.PortConflictError

type StartError = supervisor.StartError

type HistorySink = history.Sink

type HistoryEvent = history.Event

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *supervisor.Supervisor }

// New builds a supervisor for spec against the real OS process and socket
// facilities. A nil log discards supervisor logging.
func New(spec Spec, log *slog.Logger) (*Supervisor, error) {
	inner, err := supervisor.New(spec, nil, nil, log)
	if err != nil {
		return nil, err
	}
	return &Supervisor{inner: inner}, nil
}

func (s *Supervisor) Start() (StartResult, error)   { return s.inner.Start() }
func (s *Supervisor) Stop() (Status, error)         { return s.inner.Stop() }
func (s *Supervisor) Restart() (StartResult, error) { return s.inner.Restart() }
func (s *Supervisor) Status() (Status, error)       { return s.inner.Status() }
func (s *Supervisor) Spec() Spec                    { return s.inner.Spec() }

// NewSQLiteHistory opens the local action-audit sink.
func NewSQLiteHistory(dsn string) (HistorySink, error) {
	return history.NewSQLite(dsn)
}
