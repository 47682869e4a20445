package supervisor

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/camherd/camherd/internal/feed"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

// startEntry launches script under sh and returns its entry with the reaper
// running.
func startEntry(t *testing.T, f feed.Feed, script string) *Entry {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	e := newEntry(f, cmd, nil, time.Now())
	go e.reap()
	return e
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

func TestEntryAliveAndReap(t *testing.T) {
	requireUnix(t)
	e := startEntry(t, feed.Feed{ID: 1}, "sleep 0.1")
	if !e.Alive() {
		t.Fatalf("entry not alive right after start")
	}
	if e.ExitErr() != nil {
		t.Fatalf("exit error before exit: %v", e.ExitErr())
	}
	waitFor(t, 2*time.Second, func() bool { return !e.Alive() })
	if err := e.ExitErr(); err != nil {
		t.Fatalf("clean exit reported error: %v", err)
	}
}

func TestEntryExitErrRecordsFailure(t *testing.T) {
	requireUnix(t)
	e := startEntry(t, feed.Feed{ID: 1}, "exit 3")
	waitFor(t, 2*time.Second, func() bool { return !e.Alive() })
	if e.ExitErr() == nil {
		t.Fatalf("non-zero exit did not record an error")
	}
}

func TestTerminateGraceful(t *testing.T) {
	requireUnix(t)
	e := startEntry(t, feed.Feed{ID: 1}, "sleep 10")
	if got := e.Terminate(2 * time.Second); got != TermExited {
		t.Fatalf("Terminate = %v, want %v", got, TermExited)
	}
	if e.Alive() {
		t.Fatalf("entry still alive after Terminate")
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	requireUnix(t)
	e := startEntry(t, feed.Feed{ID: 1}, `trap "" TERM; sleep 10`)
	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)
	if got := e.Terminate(200 * time.Millisecond); got != TermKilled {
		t.Fatalf("Terminate = %v, want %v", got, TermKilled)
	}
	if e.Alive() {
		t.Fatalf("entry still alive after kill escalation")
	}
}

func TestTerminateIdempotentOnExitedEntry(t *testing.T) {
	requireUnix(t)
	e := startEntry(t, feed.Feed{ID: 1}, "true")
	waitFor(t, 2*time.Second, func() bool { return !e.Alive() })
	for i := 0; i < 2; i++ {
		if got := e.Terminate(time.Second); got != TermExited {
			t.Fatalf("Terminate on exited entry = %v, want %v", got, TermExited)
		}
	}
}

func TestTermOutcomeString(t *testing.T) {
	cases := map[TermOutcome]string{
		TermExited: "exited",
		TermKilled: "killed",
		TermFailed: "failed",
	}
	for o, want := range cases {
		if o.String() != want {
			t.Fatalf("TermOutcome(%d).String() = %q, want %q", o, o.String(), want)
		}
	}
}
