package camherd

import (
	"github.com/camherd/camherd/internal/engine"
	"github.com/camherd/camherd/internal/supervisor"
)

// Status types re-exported for embedding consumers.

type Snapshot = supervisor.Snapshot

type FeedStatus = supervisor.FeedStatus

type State = supervisor.State

const (
	StateUnlaunched = supervisor.StateUnlaunched
	StateStarting   = supervisor.StateStarting
	StateRunning    = supervisor.StateRunning
	StateStale      = supervisor.StateStale
	StateDead       = supervisor.StateDead
)

// Sentinel errors surfaced through the facade.
var (
	ErrTerminateTimeout = supervisor.ErrTerminateTimeout
	ErrUnknownFeed      = supervisor.ErrUnknownFeed
	ErrEngineNotFound   = engine.ErrEngineNotFound
)
