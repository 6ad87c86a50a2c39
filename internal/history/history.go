// Package history records the outcome of every supervisor action in a local
// SQLite audit table, so operators can reconstruct what happened to the
// service across invocations.
package history

import (
	"context"
	"time"
)

// Event is one supervisor action outcome.
type Event struct {
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	Action     string    `json:"action"` // start, stop, restart, status
	State      string    `json:"state"`  // resulting state
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"` // error text or informational note
}

// Sink persists events.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events; used when history is disabled.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
