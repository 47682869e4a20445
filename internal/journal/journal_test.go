package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteSinkRoundtrip(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSQLSinkFromDSN("sqlite://" + filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	events := []Event{
		{Feed: 1, Name: "cam1", Type: EventLaunched, PID: 1234, OccurredAt: time.Now()},
		{Feed: 1, Name: "cam1", Type: EventRestart, Reason: ReasonStale, OccurredAt: time.Now()},
		{Type: EventSupervisorStopped, OccurredAt: time.Now()},
	}
	for _, e := range events {
		if err := sink.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.Type, err)
		}
	}

	var n int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feed_events").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(events) {
		t.Fatalf("stored %d events, want %d", n, len(events))
	}

	var reason string
	err = sink.db.QueryRowContext(ctx,
		"SELECT reason FROM feed_events WHERE event = ?", EventRestart).Scan(&reason)
	if err != nil {
		t.Fatalf("select restart: %v", err)
	}
	if reason != ReasonStale {
		t.Fatalf("reason = %q, want %q", reason, ReasonStale)
	}
}

func TestSQLiteSinkBarePath(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSQLSinkFromDSN(filepath.Join(dir, "bare.db"))
	if err != nil {
		t.Fatalf("open sink from bare path: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if sink.dialect != "sqlite" {
		t.Fatalf("dialect = %q, want sqlite", sink.dialect)
	}
	if err := sink.Record(context.Background(), Event{Type: EventLaunched, OccurredAt: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestEmptyDSNRejected(t *testing.T) {
	if _, err := NewSQLSinkFromDSN(""); err == nil {
		t.Fatalf("empty DSN accepted")
	}
	if _, err := NewSinkFromDSN("  "); err == nil {
		t.Fatalf("blank DSN accepted by factory")
	}
}
