package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/camherd/camherd/internal/feed"
	"github.com/camherd/camherd/internal/journal"
	"github.com/camherd/camherd/internal/logger"
	"github.com/camherd/camherd/internal/metrics"
)

// Options assembles a Supervisor. Zero durations fall back to the defaults
// the original deployment ran with.
type Options struct {
	Feeds         []feed.Feed
	BaseDir       string
	Builder       CommandBuilder
	CheckInterval time.Duration // how often liveness/staleness is sampled
	StaleAfter    time.Duration // max allowed index silence before a running feed is condemned
	StopGrace     time.Duration // bounded wait after SIGTERM before SIGKILL escalation
	EngineLog     logger.Config // per-feed engine stderr capture
}

// Supervisor owns the per-feed engine processes: initial launches, the
// background health monitor and the shutdown sweep. It is safe for
// concurrent use; the HTTP layer calls Snapshot and Restart while the
// monitor runs.
type Supervisor struct {
	feeds      []feed.Feed
	baseDir    string
	staleAfter time.Duration
	stopGrace  time.Duration

	reg      *Registry
	launcher *Launcher
	monitor  *Monitor

	mu      sync.Mutex
	journal journal.Sink
}

func New(o Options) *Supervisor {
	if o.CheckInterval <= 0 {
		o.CheckInterval = 15 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 30 * time.Second
	}
	if o.StopGrace <= 0 {
		o.StopGrace = 3 * time.Second
	}
	s := &Supervisor{
		feeds:      o.Feeds,
		baseDir:    o.BaseDir,
		staleAfter: o.StaleAfter,
		stopGrace:  o.StopGrace,
		reg:        NewRegistry(),
	}
	s.launcher = NewLauncher(s.reg, o.Builder, o.BaseDir, o.StopGrace, o.EngineLog, s.record)
	s.monitor = NewMonitor(o.Feeds, s.reg, s.launcher, o.BaseDir, o.CheckInterval, o.StaleAfter, s.record)
	metrics.SetConfigured(len(o.Feeds))
	return s
}

// SetJournal installs an event sink. Nil disables journaling. The supervisor
// never reads events back; sinks are write-only observability.
func (s *Supervisor) SetJournal(sink journal.Sink) {
	s.mu.Lock()
	s.journal = sink
	s.mu.Unlock()
}

// record forwards an event to the configured sink. Sink failures are logged
// warnings and never affect the calling path.
func (s *Supervisor) record(ctx context.Context, e journal.Event) {
	s.mu.Lock()
	sink := s.journal
	s.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, e); err != nil {
		slog.Warn("journal record failed", "type", e.Type, "feed", e.Name, "error", err)
	}
}

// Feeds returns the configured feeds.
func (s *Supervisor) Feeds() []feed.Feed {
	return append([]feed.Feed(nil), s.feeds...)
}

// StartAll launches every configured feed sequentially. Per-feed failures
// are joined into the returned error but do not stop the remaining feeds;
// the monitor retries failed feeds on its ticks.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.record(ctx, journal.Event{Type: journal.EventSupervisorStarted, OccurredAt: time.Now().UTC()})
	var errs []error
	for _, f := range s.feeds {
		if err := s.launcher.Launch(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	metrics.SetActive(s.reg.CountAlive())
	return errors.Join(errs...)
}

// Run blocks in the monitor loop until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	s.monitor.Run(ctx)
}

// CheckOnce performs a single monitor pass. Exposed for embedding and tests.
func (s *Supervisor) CheckOnce(ctx context.Context) {
	s.monitor.CheckOnce(ctx)
}

// Restart relaunches one feed on demand.
func (s *Supervisor) Restart(ctx context.Context, id int) error {
	f, ok := s.feedByID(id)
	if !ok {
		return ErrUnknownFeed
	}
	metrics.IncRestart(f.Name(), journal.ReasonManual)
	s.record(ctx, journal.Event{
		Feed:       f.ID,
		Name:       f.Name(),
		Type:       journal.EventRestart,
		Reason:     journal.ReasonManual,
		OccurredAt: time.Now().UTC(),
	})
	return s.launcher.Launch(ctx, f)
}

func (s *Supervisor) feedByID(id int) (feed.Feed, bool) {
	for _, f := range s.feeds {
		if f.ID == id {
			return f, true
		}
	}
	return feed.Feed{}, false
}

// Shutdown terminates every live engine process with the bounded grace
// period. The caller is expected to have stopped the monitor (by canceling
// its context) first so no new launches race the sweep.
func (s *Supervisor) Shutdown(ctx context.Context) {
	entries := s.reg.Snapshot()
	var wg sync.WaitGroup
	for _, e := range entries {
		if !e.Alive() {
			continue
		}
		wg.Add(1)
		go func(e *Entry) {
			defer wg.Done()
			outcome := e.Terminate(s.stopGrace)
			metrics.IncTermination(outcome.String())
			if outcome == TermFailed {
				slog.Error("engine survived shutdown kill", "feed", e.Feed.Name(), "pid", e.PID())
			} else {
				slog.Info("engine stopped", "feed", e.Feed.Name(), "pid", e.PID(), "outcome", outcome.String())
			}
			s.record(ctx, journal.Event{
				Feed:       e.Feed.ID,
				Name:       e.Feed.Name(),
				Type:       journal.EventStopped,
				Reason:     journal.ReasonShutdown,
				PID:        e.PID(),
				Detail:     outcome.String(),
				OccurredAt: time.Now().UTC(),
			})
		}(e)
	}
	wg.Wait()
	metrics.SetActive(s.reg.CountAlive())
	s.record(ctx, journal.Event{Type: journal.EventSupervisorStopped, OccurredAt: time.Now().UTC()})
}
