package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/camherd/camherd/internal/feed"
	"github.com/camherd/camherd/internal/journal"
	"github.com/camherd/camherd/internal/logger"
	"github.com/camherd/camherd/internal/metrics"
)

var (
	// ErrTerminateTimeout reports a prior engine process that survived
	// SIGKILL escalation. The launcher refuses to start a replacement while
	// the old writer may still touch the output directory; the next monitor
	// tick retries the kill.
	ErrTerminateTimeout = errors.New("prior process survived kill escalation")

	// ErrUnknownFeed reports a feed ID outside the configured range.
	ErrUnknownFeed = errors.New("unknown feed")
)

// CommandBuilder constructs the engine invocation for one feed. The
// production implementation is engine.FFmpeg; tests substitute shell scripts.
type CommandBuilder interface {
	Command(f feed.Feed) *exec.Cmd
}

// Launcher performs the full terminate-reset-start-register sequence for a
// feed. Work for the same feed is serialized by a per-feed mutex, so two
// rapid restarts can never leave two live processes writing one output
// directory; distinct feeds launch concurrently.
type Launcher struct {
	reg     *Registry
	builder CommandBuilder
	baseDir string
	grace   time.Duration
	logCfg  logger.Config
	record  func(context.Context, journal.Event)

	mu       sync.Mutex
	locks    map[int]*sync.Mutex
	launches map[int]int
}

func NewLauncher(reg *Registry, builder CommandBuilder, baseDir string, grace time.Duration, logCfg logger.Config, record func(context.Context, journal.Event)) *Launcher {
	if record == nil {
		record = func(context.Context, journal.Event) {}
	}
	return &Launcher{
		reg:      reg,
		builder:  builder,
		baseDir:  baseDir,
		grace:    grace,
		logCfg:   logCfg,
		record:   record,
		locks:    make(map[int]*sync.Mutex),
		launches: make(map[int]int),
	}
}

func (l *Launcher) feedLock(id int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Restarts returns how many times the feed has been relaunched after its
// first successful start.
func (l *Launcher) Restarts(id int) int {
	l.mu.Lock()
	n := l.launches[id]
	l.mu.Unlock()
	if n <= 1 {
		return 0
	}
	return n - 1
}

func (l *Launcher) countLaunch(id int) {
	l.mu.Lock()
	l.launches[id]++
	l.mu.Unlock()
}

// Launch runs the launch sequence for f: terminate any live prior process,
// reset the output directory, start a fresh engine and install its entry.
// A start failure is non-fatal for the system: the feed stays unlaunched and
// the monitor retries on its next tick.
func (l *Launcher) Launch(ctx context.Context, f feed.Feed) error {
	lock := l.feedLock(f.ID)
	lock.Lock()
	defer lock.Unlock()

	prev := l.reg.Get(f.ID)
	if prev != nil && prev.Alive() {
		outcome := prev.Terminate(l.grace)
		metrics.IncTermination(outcome.String())
		if outcome == TermFailed {
			slog.Error("prior engine process refused to die", "feed", f.Name(), "pid", prev.PID())
			return fmt.Errorf("feed %s: %w", f.Name(), ErrTerminateTimeout)
		}
	}

	// Clean slate: the new process must not inherit the terminated one's
	// segment index, and stale segments must not be servable mid-transition.
	dir := f.Dir(l.baseDir)
	if err := os.RemoveAll(dir); err != nil {
		slog.Error("reset output directory", "feed", f.Name(), "dir", dir, "error", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Error("recreate output directory", "feed", f.Name(), "dir", dir, "error", err)
	}

	cmd := l.builder.Command(f)
	// stdout stays nil so os/exec routes it to the null device; stderr is
	// retained for diagnostics.
	stderr := l.logCfg.StderrWriter(f.Name())
	if stderr != nil {
		cmd.Stderr = stderr
	}
	configureSysProcAttr(cmd)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		if stderr != nil {
			_ = stderr.Close()
		}
		slog.Error("engine start failed", "feed", f.Name(), "error", err)
		metrics.IncLaunchFailure(f.Name())
		l.record(ctx, journal.Event{
			Feed:       f.ID,
			Name:       f.Name(),
			Type:       journal.EventLaunchFailed,
			Detail:     err.Error(),
			OccurredAt: started.UTC(),
		})
		return fmt.Errorf("launch %s: %w", f.Name(), err)
	}

	e := newEntry(f, cmd, stderr, started)
	go e.reap()

	if !l.reg.Replace(f.ID, prev, e) {
		// Another writer slipped in despite the per-feed lock; do not leave
		// two processes on one directory.
		_ = e.Terminate(l.grace)
		return fmt.Errorf("feed %s: registry entry changed during launch", f.Name())
	}

	l.countLaunch(f.ID)
	metrics.IncLaunch(f.Name())
	l.record(ctx, journal.Event{
		Feed:       f.ID,
		Name:       f.Name(),
		Type:       journal.EventLaunched,
		PID:        e.PID(),
		OccurredAt: started.UTC(),
	})
	slog.Info("engine launched", "feed", f.Name(), "pid", e.PID())
	return nil
}
