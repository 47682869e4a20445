package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func TestDaemonArgsKeepsPidFileForChild(t *testing.T) {
	in := []string{"serve", "camherd.toml", "--daemon", "--pid-file", "/run/camherd.pid", "--daemon-log", "/var/log/camherd.log"}
	got := daemonArgs(in, "/run/camherd.pid", "/var/log/camherd.log")
	want := []string{"serve", "camherd.toml", "--pid-file", "/run/camherd.pid", "--daemon-log", "/var/log/camherd.log"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("daemonArgs = %v, want %v", got, want)
	}
}

func TestDaemonArgsDropsOnlyDaemonFlag(t *testing.T) {
	in := []string{"serve", "--daemon", "--log-level", "debug"}
	got := daemonArgs(in, "", "")
	want := []string{"serve", "--log-level", "debug"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("daemonArgs = %v, want %v", got, want)
	}
}

func TestPidFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "camherd.pid")

	if err := writePidFile(pidFile, os.Getpid()); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}
	b, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if string(b) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file contains %q", b)
	}

	removePidFile(pidFile)
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("pid file not removed (err=%v)", err)
	}

	// Empty path is a no-op.
	removePidFile("")
}
