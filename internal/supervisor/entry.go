package supervisor

import (
	"io"
	"os/exec"
	"time"

	"github.com/camherd/camherd/internal/feed"
)

// reapGrace bounds the wait for the reaper to observe an exit after SIGKILL.
const reapGrace = 500 * time.Millisecond

// TermOutcome tags the result of a bounded termination.
type TermOutcome int

const (
	// TermExited: the process was already gone or left within the grace
	// period after SIGTERM.
	TermExited TermOutcome = iota
	// TermKilled: the process exited only after SIGKILL escalation.
	TermKilled
	// TermFailed: the process survived escalation. The caller must not
	// start a replacement writer for the same output directory.
	TermFailed
)

func (o TermOutcome) String() string {
	switch o {
	case TermExited:
		return "exited"
	case TermKilled:
		return "killed"
	default:
		return "failed"
	}
}

// Entry is one launch of one feed: the subprocess handle plus liveness
// metadata. An Entry is immutable after creation except for the exit fields,
// which the reaper goroutine writes exactly once before closing done; the
// channel close publishes them to readers.
type Entry struct {
	Feed      feed.Feed
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	stderr    io.WriteCloser
	done      chan struct{}
	exitErr   error
}

// newEntry wraps a started command. The caller must spawn e.reap exactly once.
func newEntry(f feed.Feed, cmd *exec.Cmd, stderr io.WriteCloser, startedAt time.Time) *Entry {
	return &Entry{
		Feed:      f,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: startedAt,
		stderr:    stderr,
		done:      make(chan struct{}),
	}
}

// reap waits for the subprocess, records its exit error, releases the stderr
// writer and closes done. It runs on its own goroutine and is the entry's
// single waiter, so Terminate never calls cmd.Wait itself.
func (e *Entry) reap() {
	err := e.cmd.Wait()
	e.exitErr = err
	if e.stderr != nil {
		_ = e.stderr.Close()
	}
	close(e.done)
}

// Alive reports whether the subprocess is still running, without blocking.
func (e *Entry) Alive() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

func (e *Entry) PID() int { return e.pid }

func (e *Entry) StartedAt() time.Time { return e.startedAt }

// ExitErr returns the recorded exit error once the process has been reaped,
// nil while it is still running or if it exited cleanly.
func (e *Entry) ExitErr() error {
	select {
	case <-e.done:
		return e.exitErr
	default:
		return nil
	}
}

// Terminate kills the subprocess with a bounded grace period: SIGTERM, wait
// up to grace, then SIGKILL and a short reap wait. Signals go to the process
// group so the engine's children die with it. Idempotent: an already-exited
// entry returns TermExited immediately.
func (e *Entry) Terminate(grace time.Duration) TermOutcome {
	select {
	case <-e.done:
		return TermExited
	default:
	}
	_ = signalTerm(e.cmd)
	select {
	case <-e.done:
		return TermExited
	case <-time.After(grace):
	}
	_ = signalKill(e.cmd)
	select {
	case <-e.done:
		return TermKilled
	case <-time.After(reapGrace):
		return TermFailed
	}
}
