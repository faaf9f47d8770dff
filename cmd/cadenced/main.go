// cadenced is the cadence background daemon. It listens for keystroke events
// from editor hooks, runs one trigger engine per editing session, and serves
// the control API the CLI talks to. It is spawned automatically by the hook
// or started explicitly with `cadence daemon start`.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/daemon"
	"github.com/runger/cadence/internal/log"
)

// Version is injected at build time via ldflags and surfaces in the startup
// log line and the control API's /status response.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cadenced: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnvOverrides()

	paths := config.DefaultPaths()

	// Ensure directories exist
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Set up logging. The spawner redirects stderr into the log file, so
	// stderr is right both under a spawn and in a foreground run; an
	// explicit daemon.log_file wins over either.
	var out io.Writer = os.Stderr
	if cfg.Daemon.LogFile != "" {
		f, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(&log.Config{
		Output: out,
		Level:  log.ParseLevel(cfg.Daemon.LogLevel),
	})

	for _, w := range cfg.Engine.ValidateAndFix() {
		logger.Warn("config value adjusted", "field", w.Field, "reason", w.Message)
	}

	daemon.Version = Version

	// Run the daemon (blocks until shutdown)
	return daemon.Run(context.Background(), &daemon.ServerConfig{
		Config: cfg,
		Paths:  paths,
		Logger: logger,
	})
}
