// Package log provides JSON-lines structured logging for the cadence daemon
// and CLI. Every record carries a "ts" timestamp, a level, and a message, so
// the daemon log file can be tailed and filtered with standard JSON tooling.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
		Debug:  false,
	}
}

// New creates a new JSON-lines structured logger:
//
//	{"ts":"2024-01-15T10:30:00Z","level":"info","msg":"trigger fired","session":"ab12","chars":42}
//
// Log levels:
//   - debug: Verbose (enabled via CADENCE_DEBUG=1)
//   - info: Startup, shutdown, config reload, fired triggers
//   - warn: Non-fatal issues (dropped events, rejected triggers worth noting)
//   - error: Fatal issues requiring attention
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Rename "time" to "ts" to keep records compact
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			if a.Key == slog.MessageKey {
				a.Key = "msg"
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(output, opts)
	return slog.New(handler)
}

// NewFromEnv creates a logger configured from environment variables.
// CADENCE_DEBUG=1 enables debug logging.
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	if os.Getenv("CADENCE_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// ParseLevel maps a config log-level string onto a slog.Level. Unknown
// strings fall back to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StartupInfo holds information to log at daemon startup.
type StartupInfo struct {
	Version       string
	GitCommit     string
	ConfigPath    string
	JournalPath   string
	SchemaVersion int
	IngestSocket  string
	ControlSocket string
	PID           int
}

// LogStartup logs daemon startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Info("daemon started",
		"version", info.Version,
		"git_commit", info.GitCommit,
		"config_path", info.ConfigPath,
		"journal_path", info.JournalPath,
		"schema_version", info.SchemaVersion,
		"ingest_socket", info.IngestSocket,
		"control_socket", info.ControlSocket,
		"pid", info.PID,
	)
}

// LogShutdown logs daemon shutdown.
func LogShutdown(logger *slog.Logger, reason string) {
	logger.Info("daemon shutting down", "reason", reason)
}

// LogConfigReload logs configuration reload.
func LogConfigReload(logger *slog.Logger, configPath string) {
	logger.Info("configuration reloaded", "config_path", configPath)
}

// LogEventDropped logs when an ingestion event is dropped.
func LogEventDropped(logger *slog.Logger, reason string) {
	logger.Warn("event dropped", "reason", reason)
}

// LogTriggerFired logs an accepted trigger forwarded to the consumer.
func LogTriggerFired(logger *slog.Logger, sessionID string, source string, chars int, velocity float64) {
	logger.Info("trigger fired",
		"session", sessionID,
		"source", source,
		"chars", chars,
		"velocity", velocity,
	)
}

// LogTriggerRejected logs a candidate that failed the eligibility gate.
// Rejections are policy, not errors, so this stays at debug.
func LogTriggerRejected(logger *slog.Logger, sessionID string, reason string) {
	logger.Debug("trigger rejected", "session", sessionID, "reason", reason)
}

// LogSessionDisarmed logs an engine disarmed by the inactivity guard.
func LogSessionDisarmed(logger *slog.Logger, sessionID string, idleMinutes float64) {
	logger.Info("session disarmed",
		"session", sessionID,
		"idle_minutes", idleMinutes,
	)
}

// LogSQLiteError logs SQLite errors.
func LogSQLiteError(logger *slog.Logger, operation string, err error) {
	logger.Error("sqlite error", "operation", operation, "error", err)
}
