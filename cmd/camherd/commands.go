package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camherd/camherd"
	"github.com/camherd/camherd/internal/logger"
	"github.com/camherd/camherd/pkg/client"
	"github.com/spf13/cobra"
)

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

// ServeFlags holds flags for the serve subcommand.
type ServeFlags struct {
	Daemonize bool
	PidFile   string
	LogFile   string
}

// StatusFlags holds flags for the status subcommand.
type StatusFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// buildRoot assembles the command tree.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	serveFlags := &ServeFlags{}
	statusFlags := &StatusFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags, serveFlags),
		createCheckCommand(globalFlags),
		createStatusCommand(statusFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "camherd",
		Short: "Camera feed transcode supervisor",
		Long: `Camherd runs one transcoding engine process per configured camera feed,
restarts feeds that crash or stall, and serves the resulting HLS streams
over HTTP.

Examples:
  camherd serve --config camherd.toml
  camherd check --config camherd.toml
  camherd status --api-url http://localhost:8080`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional; env vars alone can configure camherd)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "override log level (debug|info|warn|error)")
	return root
}

func createServeCommand(globalFlags *GlobalFlags, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the supervisor and HTTP server",
		Long: `Start the supervisor: launch every feed's engine process, monitor them
for crashes and stalled output, and serve the streams, status API and
metrics over HTTP.

Examples:
  camherd serve                     # configure via CAM_* environment
  camherd serve camherd.toml        # with a config file
  camherd serve --daemon --pid-file /run/camherd.pid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCommand(globalFlags, serveFlags, args)
		},
	}
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemon", false, "run detached in the background")
	cmd.Flags().StringVar(&serveFlags.PidFile, "pid-file", "", "write daemon PID to file")
	cmd.Flags().StringVar(&serveFlags.LogFile, "daemon-log", "", "redirect daemon output to file")
	return cmd
}

func runServeCommand(globalFlags *GlobalFlags, serveFlags *ServeFlags, args []string) error {
	configPath := globalFlags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg, err := camherd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if globalFlags.LogLevel != "" {
		cfg.Log.Level = globalFlags.LogLevel
	}

	if serveFlags.Daemonize {
		return daemonize(serveFlags.PidFile, serveFlags.LogFile)
	}

	logger.Slog{Level: cfg.Log.Level, Color: cfg.Log.Color}.Setup()

	// Boot check: refuse to run with a non-functional supervisor.
	enginePath, err := camherd.CheckEngine(cfg.Engine.Binary)
	if err != nil {
		return err
	}
	slog.Info("engine resolved", "binary", cfg.Engine.Binary, "path", enginePath)

	sup, err := camherd.New(cfg)
	if err != nil {
		return err
	}

	if err := camherd.RegisterMetricsDefault(); err != nil {
		slog.Warn("metrics registration failed", "error", err)
	}

	if cfg.Journal.DSN != "" {
		if err := sup.OpenJournal(cfg.Journal.DSN); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	}

	// Startup ordering: output tree first, then HTTP, then launches, then
	// the monitor. The HLS routes must never point at missing directories.
	if err := sup.EnsureOutputTree(); err != nil {
		return fmt.Errorf("create output tree: %w", err)
	}
	server := camherd.NewHTTPServer(cfg.Listen, sup)
	slog.Info("http server listening", "addr", cfg.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.StartAll(ctx); err != nil {
		slog.Warn("some feeds failed to launch, monitor will retry", "error", err)
	}
	go sup.Run(ctx)
	slog.Info("supervisor running", "feeds", len(sup.Feeds()),
		"check_interval", cfg.Supervisor.CheckInterval, "stale_after", cfg.Supervisor.StaleAfter)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	cancel() // stop the monitor so no new launches race the sweep
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	sup.Shutdown(shutdownCtx)
	_ = server.Shutdown(shutdownCtx)
	if err := sup.CloseJournal(); err != nil {
		slog.Warn("journal close failed", "error", err)
	}
	removePidFile(serveFlags.PidFile)
	return nil
}

func createCheckCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [config.toml]",
		Short: "Validate configuration and print the per-feed plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := globalFlags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			cfg, err := camherd.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			enginePath, err := camherd.CheckEngine(cfg.Engine.Binary)
			if err != nil {
				return err
			}
			sup, err := camherd.New(cfg)
			if err != nil {
				return err
			}
			cmd.Printf("engine: %s\n", enginePath)
			cmd.Printf("output: %s\n", cfg.BaseDir)
			src := cfg.Camera.Source()
			for _, f := range sup.Feeds() {
				cmd.Printf("%-8s %s -> %s\n", f.Name(), f.RedactedURL(src), f.Playlist(cfg.BaseDir))
			}
			return nil
		},
	}
}

func createStatusCommand(statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running camherd instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(client.Config{BaseURL: statusFlags.APIUrl, Timeout: statusFlags.APITimeout})
			ctx, cancel := context.WithTimeout(context.Background(), statusFlags.APITimeout)
			defer cancel()
			health, err := c.Health(ctx)
			if err != nil {
				return fmt.Errorf("camherd unreachable: %w", err)
			}
			cmd.Printf("status: %s  active: %d/%d\n", health.Status, health.ActiveStreams, health.TotalStreams)
			feeds, err := c.Feeds(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("%-8s %-12s %-8s %-10s %s\n", "FEED", "STATE", "PID", "RESTARTS", "SINCE")
			for _, f := range feeds {
				since := ""
				if !f.StartedAt.IsZero() {
					since = time.Since(f.StartedAt).Round(time.Second).String()
				}
				cmd.Printf("%-8s %-12s %-8d %-10d %s\n", f.Name, f.State, f.PID, f.Restarts, since)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFlags.APIUrl, "api-url", "http://localhost:8080", "camherd base URL")
	cmd.Flags().DurationVar(&statusFlags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}
