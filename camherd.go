// Package camherd supervises one transcoding engine process per configured
// camera feed and exposes their output as browser-playable HLS streams. The
// package is the embedding facade over the internal supervisor; the camherd
// binary in cmd/camherd is a thin CLI over the same API.
package camherd

import (
	"context"
	"net/http"
	"os"

	cfg "github.com/camherd/camherd/internal/config"
	"github.com/camherd/camherd/internal/engine"
	"github.com/camherd/camherd/internal/feed"
	"github.com/camherd/camherd/internal/journal"
	"github.com/camherd/camherd/internal/logger"
	"github.com/camherd/camherd/internal/metrics"
	iapi "github.com/camherd/camherd/internal/server"
	"github.com/camherd/camherd/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Feed = feed.Feed

type JournalSink = journal.Sink

// LoadConfig reads, expands and validates a configuration file. An empty
// path loads defaults plus the canonical environment keys.
func LoadConfig(path string) (Config, error) {
	return cfg.Load(path)
}

// CheckEngine resolves the transcoding engine binary. A failure means the
// system must refuse to start.
func CheckEngine(binary string) (string, error) {
	return engine.Check(binary)
}

// Supervisor is a thin facade over the internal supervisor.
// It provides a stable public API for embedding.
type Supervisor struct {
	inner   *supervisor.Supervisor
	cfg     Config
	journal journal.Sink
}

// New assembles a Supervisor from cfg. cfg must validate; configs produced
// by LoadConfig already do.
func New(c Config) (*Supervisor, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	builder := &engine.FFmpeg{
		Binary: c.Engine.Binary,
		Source: c.Camera.Source(),
		Profile: engine.Profile{
			SegmentSeconds: c.Engine.SegmentSeconds,
			PlaylistSize:   c.Engine.PlaylistSize,
			RTSPTimeout:    c.Engine.RTSPTimeout,
		},
		BaseDir: c.BaseDir,
	}
	inner := supervisor.New(supervisor.Options{
		Feeds:         feed.All(c.Camera.Feeds),
		BaseDir:       c.BaseDir,
		Builder:       builder,
		CheckInterval: c.Supervisor.CheckInterval,
		StaleAfter:    c.Supervisor.StaleAfter,
		StopGrace:     c.Supervisor.StopGrace,
		EngineLog: logger.Config{
			Dir:        c.Log.Dir,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	})
	return &Supervisor{inner: inner, cfg: c}, nil
}

// SetJournal installs an event sink created from the journal DSN (see
// OpenJournal). Nil disables journaling.
func (s *Supervisor) SetJournal(sink JournalSink) {
	s.journal = sink
	s.inner.SetJournal(sink)
}

// OpenJournal creates a sink from a DSN and installs it.
func (s *Supervisor) OpenJournal(dsn string) error {
	sink, err := journal.NewSinkFromDSN(dsn)
	if err != nil {
		return err
	}
	s.SetJournal(sink)
	return nil
}

// CloseJournal closes the installed sink, if any.
func (s *Supervisor) CloseJournal() error {
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.SetJournal(nil)
	return err
}

// EnsureOutputTree creates the base directory and every per-feed directory.
// The bootstrap must call this before serving the HLS routes and before the
// first launch: the core never writes into a directory it has not ensured
// exists.
func (s *Supervisor) EnsureOutputTree() error {
	for _, f := range s.inner.Feeds() {
		if err := os.MkdirAll(f.Dir(s.cfg.BaseDir), 0o750); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) Feeds() []Feed { return s.inner.Feeds() }

func (s *Supervisor) StartAll(ctx context.Context) error { return s.inner.StartAll(ctx) }

func (s *Supervisor) Run(ctx context.Context) { s.inner.Run(ctx) }

func (s *Supervisor) CheckOnce(ctx context.Context) { s.inner.CheckOnce(ctx) }

func (s *Supervisor) Restart(ctx context.Context, id int) error { return s.inner.Restart(ctx, id) }

func (s *Supervisor) Snapshot() Snapshot { return s.inner.Snapshot() }

func (s *Supervisor) Shutdown(ctx context.Context) { s.inner.Shutdown(ctx) }

// NewHTTPServer starts the HTTP layer (player page, health, API, HLS files,
// metrics) on addr, backed by s.
func NewHTTPServer(addr string, s *Supervisor) *http.Server {
	return iapi.NewServer(addr, s.inner, s.cfg.BaseDir)
}

// HTTPHandler returns the router without a server, for mounting into an
// existing mux.
func HTTPHandler(s *Supervisor) http.Handler {
	return iapi.NewRouter(s.inner, s.cfg.BaseDir).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }
