package supervisor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/camherd/camherd/internal/feed"
	"github.com/camherd/camherd/internal/journal"
	"github.com/camherd/camherd/internal/metrics"
)

// Monitor periodically evaluates every feed against two independent liveness
// signals and relaunches the ones that fail either. A feed's failure never
// aborts the loop or delays the other feeds: each tick checks all feeds
// concurrently, and the launcher's bounded kill keeps per-feed work short.
type Monitor struct {
	feeds      []feed.Feed
	reg        *Registry
	launcher   *Launcher
	baseDir    string
	interval   time.Duration
	staleAfter time.Duration
	record     func(context.Context, journal.Event)
}

func NewMonitor(feeds []feed.Feed, reg *Registry, launcher *Launcher, baseDir string, interval, staleAfter time.Duration, record func(context.Context, journal.Event)) *Monitor {
	if record == nil {
		record = func(context.Context, journal.Event) {}
	}
	return &Monitor{
		feeds:      feeds,
		reg:        reg,
		launcher:   launcher,
		baseDir:    baseDir,
		interval:   interval,
		staleAfter: staleAfter,
		record:     record,
	}
}

// Run ticks until ctx is canceled. It never returns an error: feed-local
// failures are logged and retried on subsequent ticks.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.CheckOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckOnce runs one monitoring pass over all configured feeds.
func (m *Monitor) CheckOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range m.feeds {
		wg.Add(1)
		go func(f feed.Feed) {
			defer wg.Done()
			m.checkFeed(ctx, f)
		}(f)
	}
	wg.Wait()
	metrics.SetActive(m.reg.CountAlive())
}

// checkFeed classifies one feed and relaunches it when DEAD or STALE. DEAD
// takes precedence: staleness is only meaningful for a live process.
func (m *Monitor) checkFeed(ctx context.Context, f feed.Feed) {
	e := m.reg.Get(f.ID)
	if e == nil || !e.Alive() {
		if e == nil {
			slog.Warn("feed dead, restarting", "feed", f.Name(), "cause", "never launched")
		} else {
			slog.Warn("feed dead, restarting", "feed", f.Name(), "pid", e.PID(), "error", e.ExitErr())
		}
		m.restart(ctx, f, journal.ReasonDead)
		return
	}
	if age, stale := m.playlistAge(f); stale {
		slog.Warn("feed stale, restarting", "feed", f.Name(), "pid", e.PID(), "silence", age)
		m.restart(ctx, f, journal.ReasonStale)
		return
	}
}

// playlistAge reports how long the feed's index file has been silent and
// whether that exceeds the staleness threshold. An absent index file is
// evidence of not-yet-started, never of staleness.
func (m *Monitor) playlistAge(f feed.Feed) (time.Duration, bool) {
	fi, err := os.Stat(f.Playlist(m.baseDir))
	if err != nil {
		return 0, false
	}
	age := time.Since(fi.ModTime())
	return age, age > m.staleAfter
}

func (m *Monitor) restart(ctx context.Context, f feed.Feed, reason string) {
	metrics.IncRestart(f.Name(), reason)
	m.record(ctx, journal.Event{
		Feed:       f.ID,
		Name:       f.Name(),
		Type:       journal.EventRestart,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
	if err := m.launcher.Launch(ctx, f); err != nil {
		slog.Error("restart failed", "feed", f.Name(), "reason", reason, "error", err)
	}
}
