package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/camherd/camherd/internal/feed"
	"github.com/camherd/camherd/internal/logger"
)

// scriptBuilder runs shell scripts instead of the real engine.
type scriptBuilder struct {
	script func(f feed.Feed) string
}

func (b scriptBuilder) Command(f feed.Feed) *exec.Cmd {
	return exec.Command("sh", "-c", b.script(f))
}

// playlistWriter produces a builder whose process writes the feed's playlist
// once and then stays alive.
func playlistWriter(base string) scriptBuilder {
	return scriptBuilder{script: func(f feed.Feed) string {
		return fmt.Sprintf("echo seg > %s; sleep 30", f.Playlist(base))
	}}
}

func newTestLauncher(t *testing.T, base string, b CommandBuilder) (*Launcher, *Registry) {
	t.Helper()
	reg := NewRegistry()
	l := NewLauncher(reg, b, base, 2*time.Second, logger.Config{}, nil)
	return l, reg
}

func TestLaunchInstallsEntry(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	l, reg := newTestLauncher(t, base, playlistWriter(base))
	f := feed.Feed{ID: 1}

	if err := l.Launch(context.Background(), f); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { _ = reg.Get(f.ID).Terminate(time.Second) })

	e := reg.Get(f.ID)
	if e == nil || !e.Alive() {
		t.Fatalf("no live entry after Launch")
	}
	if e.PID() <= 0 {
		t.Fatalf("entry PID not recorded")
	}
	if e.StartedAt().IsZero() {
		t.Fatalf("entry start timestamp not recorded")
	}
	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(f.Playlist(base))
		return err == nil
	})
}

func TestLaunchResetsOutputDirectory(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	l, reg := newTestLauncher(t, base, playlistWriter(base))
	f := feed.Feed{ID: 1}

	stale := filepath.Join(f.Dir(base), "segment-0001.ts")
	if err := os.MkdirAll(f.Dir(base), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := l.Launch(context.Background(), f); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { _ = reg.Get(f.ID).Terminate(time.Second) })

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale segment survived the directory reset")
	}
}

func TestRelaunchTerminatesPriorProcess(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	l, reg := newTestLauncher(t, base, playlistWriter(base))
	f := feed.Feed{ID: 1}
	ctx := context.Background()

	if err := l.Launch(ctx, f); err != nil {
		t.Fatalf("first Launch: %v", err)
	}
	first := reg.Get(f.ID)

	if err := l.Launch(ctx, f); err != nil {
		t.Fatalf("second Launch: %v", err)
	}
	second := reg.Get(f.ID)
	t.Cleanup(func() { _ = second.Terminate(time.Second) })

	if first == second {
		t.Fatalf("entry not replaced on relaunch")
	}
	if first.Alive() {
		t.Fatalf("prior process still alive after relaunch")
	}
	if !second.Alive() {
		t.Fatalf("replacement process not alive")
	}
	if got := l.Restarts(f.ID); got != 1 {
		t.Fatalf("Restarts = %d, want 1", got)
	}
}

// Two rapid concurrent launches must serialize: afterwards exactly one live
// process owns the output directory.
func TestConcurrentLaunchesLeaveSingleLiveProcess(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	l, reg := newTestLauncher(t, base, playlistWriter(base))
	f := feed.Feed{ID: 1}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Launch(context.Background(), f)
		}()
	}
	wg.Wait()

	e := reg.Get(f.ID)
	t.Cleanup(func() { _ = e.Terminate(time.Second) })
	if e == nil || !e.Alive() {
		t.Fatalf("no live entry after concurrent launches")
	}
}

func TestLaunchFailureLeavesFeedUnlaunched(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	l, reg := newTestLauncher(t, base, brokenBuilder{})

	err := l.Launch(context.Background(), feed.Feed{ID: 1})
	if err == nil {
		t.Fatalf("Launch with unspawnable binary returned nil error")
	}
	if reg.Get(1) != nil {
		t.Fatalf("failed launch installed a registry entry")
	}
}

type brokenBuilder struct{}

func (brokenBuilder) Command(f feed.Feed) *exec.Cmd {
	return exec.Command("/nonexistent/engine-binary")
}

func TestLaunchErrUnknownIsNotTerminateTimeout(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	l, _ := newTestLauncher(t, base, brokenBuilder{})
	err := l.Launch(context.Background(), feed.Feed{ID: 1})
	if errors.Is(err, ErrTerminateTimeout) {
		t.Fatalf("start failure misreported as terminate timeout")
	}
}
