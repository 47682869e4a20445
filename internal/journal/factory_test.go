package journal

import (
	"path/filepath"
	"testing"
)

func TestFactorySelectsSQLite(t *testing.T) {
	dir := t.TempDir()
	for _, dsn := range []string{
		"sqlite://" + filepath.Join(dir, "a.db"),
		filepath.Join(dir, "b.db"),
	} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("NewSinkFromDSN(%q): %v", dsn, err)
		}
		if _, ok := sink.(*SQLSink); !ok {
			t.Fatalf("NewSinkFromDSN(%q) returned %T, want *SQLSink", dsn, sink)
		}
		_ = sink.Close()
	}
}

func TestFactoryRejectsUnsupportedScheme(t *testing.T) {
	if _, err := NewSinkFromDSN("redis://localhost:6379"); err == nil {
		t.Fatalf("unsupported scheme accepted")
	}
}
