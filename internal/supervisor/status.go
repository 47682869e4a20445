package supervisor

import (
	"os"
	"time"

	"github.com/camherd/camherd/internal/feed"
)

// State is the externally visible lifecycle phase of one feed, derived
// non-blockingly at snapshot time. The transient restart window inside
// Launch is not observable as a distinct state.
type State string

const (
	StateUnlaunched State = "unlaunched"
	StateStarting   State = "starting" // live process, no index file yet
	StateRunning    State = "running"
	StateStale      State = "stale"
	StateDead       State = "dead"
)

// FeedStatus is the point-in-time view of one feed.
type FeedStatus struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"last_error,omitempty"`
}

// Snapshot is the status reporter's answer to a liveness query. Active never
// exceeds Total and never goes negative: each feed is counted from a single
// consistent read of its entry.
type Snapshot struct {
	Total  int          `json:"total"`
	Active int          `json:"active"`
	Feeds  []FeedStatus `json:"feeds"`
}

// Snapshot computes the current view of all feeds. It holds the registry
// lock only for the map copy; per-feed liveness checks and index-file stats
// happen outside any lock, so a launch in progress never blocks a caller
// beyond the pointer-swap hold.
func (s *Supervisor) Snapshot() Snapshot {
	entries := s.reg.Snapshot()
	snap := Snapshot{Total: len(s.feeds), Feeds: make([]FeedStatus, 0, len(s.feeds))}
	for _, f := range s.feeds {
		fs := FeedStatus{
			ID:       f.ID,
			Name:     f.Name(),
			State:    StateUnlaunched,
			Restarts: s.launcher.Restarts(f.ID),
		}
		if e, ok := entries[f.ID]; ok {
			fs.PID = e.PID()
			fs.StartedAt = e.StartedAt()
			if !e.Alive() {
				fs.State = StateDead
				if err := e.ExitErr(); err != nil {
					fs.LastError = err.Error()
				}
			} else {
				snap.Active++
				fs.State = s.liveState(f)
			}
		}
		snap.Feeds = append(snap.Feeds, fs)
	}
	return snap
}

func (s *Supervisor) liveState(f feed.Feed) State {
	fi, err := os.Stat(f.Playlist(s.baseDir))
	if err != nil {
		return StateStarting
	}
	if time.Since(fi.ModTime()) > s.staleAfter {
		return StateStale
	}
	return StateRunning
}
