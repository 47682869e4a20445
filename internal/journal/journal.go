// Package journal exports feed lifecycle events to external systems for
// offline analysis. Sinks are write-only observability: the supervisor never
// reads events back, and the in-memory registry remains the only state that
// influences behavior.
package journal

import (
	"context"
	"time"
)

// Event types.
const (
	EventLaunched          = "launched"
	EventLaunchFailed      = "launch_failed"
	EventRestart           = "restart"
	EventStopped           = "stopped"
	EventSupervisorStarted = "supervisor_started"
	EventSupervisorStopped = "supervisor_stopped"
)

// Restart/stop reasons.
const (
	ReasonDead     = "dead"
	ReasonStale    = "stale"
	ReasonManual   = "manual"
	ReasonShutdown = "shutdown"
)

// Event is one feed lifecycle occurrence. Feed and Name are zero/empty for
// supervisor-level events.
type Event struct {
	Feed       int       `json:"feed,omitempty"`
	Name       string    `json:"name,omitempty"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink is a destination for events. Implementations must be safe for
// concurrent use. Record failures are reported to the caller, which logs
// and continues; a sink error never fails a launch or a restart.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}
