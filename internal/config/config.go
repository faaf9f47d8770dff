package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runger/cadence/internal/engine"
)

// Config represents the cadence configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Hook    HookConfig    `yaml:"hook"`
	Journal JournalConfig `yaml:"journal"`
}

// EngineConfig holds the trigger-engine tunables. Every duration is in
// milliseconds, matching the wire and journal representations.
type EngineConfig struct {
	SampleIntervalMs    int     `yaml:"sample_interval_ms"`    // Classifier cadence
	WindowMs            int     `yaml:"window_ms"`             // Velocity lookback window
	MaxHistory          int     `yaml:"max_history"`           // Keystroke buffer cap
	FlowThreshold       float64 `yaml:"flow_threshold"`        // chars/sec at or above -> FLOW
	EditingThreshold    float64 `yaml:"editing_threshold"`     // chars/sec at or above -> EDITING
	ReviewingThreshold  float64 `yaml:"reviewing_threshold"`   // chars/sec at or above -> REVIEWING
	GraceMs             int     `yaml:"grace_ms"`              // Settle time after STOPPED
	ShortWaitMs         int     `yaml:"short_wait_ms"`         // Countdown for terminal-marked text
	LongWaitMs          int     `yaml:"long_wait_ms"`          // Countdown otherwise
	MidpointMs          int     `yaml:"midpoint_ms"`           // Advisory tick into the countdown
	MinLength           int     `yaml:"min_length"`            // Automatic path length floor (runes)
	CooldownMs          int     `yaml:"cooldown_ms"`           // Minimum spacing between sends
	MinChangeFraction   float64 `yaml:"min_change_fraction"`   // Required change vs last sent text
	ManualMinLength     int     `yaml:"manual_min_length"`     // Manual path length floor (runes)
	InactivityTimeoutMs int     `yaml:"inactivity_timeout_ms"` // Guard disarm after total silence
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	LogLevel       string `yaml:"log_level"`        // debug, info, warn, error
	LogFile        string `yaml:"log_file"`         // Log file path (overrides default)
	IngestSocket   string `yaml:"ingest_socket"`    // Event socket path (overrides default)
	ControlSocket  string `yaml:"control_socket"`   // Control socket path (overrides default)
	QueueMaxEvents int    `yaml:"queue_max_events"` // Ingestion queue capacity
	SessionTTLMins int    `yaml:"session_ttl_mins"` // Reap sessions idle this long
	IdleExitMins   int    `yaml:"idle_exit_mins"`   // Exit after no sessions for this long (0 = never)
}

// HookConfig holds settings for the hot-path event sender.
type HookConfig struct {
	ConnectTimeoutMs int  `yaml:"connect_timeout_ms"` // Socket connect budget
	WriteTimeoutMs   int  `yaml:"write_timeout_ms"`   // Socket write budget
	AutoStartDaemon  bool `yaml:"auto_start_daemon"`  // Spawn the daemon if not running
}

// JournalConfig holds trigger-journal settings.
type JournalConfig struct {
	Enabled               bool   `yaml:"enabled"`                 // Persist fired/rejected triggers
	Path                  string `yaml:"path"`                    // Database path (overrides default)
	RetentionDays         int    `yaml:"retention_days"`          // Prune entries older than this (0 = keep)
	MaxEntries            int    `yaml:"max_entries"`             // Hard cap on journal rows
	CheckpointIntervalMs  int    `yaml:"checkpoint_interval_ms"`  // WAL checkpoint cadence
	RecordRejections      bool   `yaml:"record_rejections"`       // Journal gate rejections too
	SQLiteBusyTimeoutMs   int    `yaml:"sqlite_busy_timeout_ms"`  // SQLite busy timeout
	MaintenanceIntervalMs int    `yaml:"maintenance_interval_ms"` // Prune/vacuum cadence
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: DefaultEngineConfig(),
		Daemon: DaemonConfig{
			LogLevel:       "info",
			LogFile:        "", // Use default from paths
			IngestSocket:   "", // Use default from paths
			ControlSocket:  "", // Use default from paths
			QueueMaxEvents: 4096,
			SessionTTLMins: 30,
			IdleExitMins:   0, // Never exit on idle
		},
		Hook: HookConfig{
			ConnectTimeoutMs: 15,
			WriteTimeoutMs:   20,
			AutoStartDaemon:  true,
		},
		Journal: JournalConfig{
			Enabled:               true,
			Path:                  "", // Use default from paths
			RetentionDays:         90,
			MaxEntries:            100000,
			CheckpointIntervalMs:  60000,
			RecordRejections:      true,
			SQLiteBusyTimeoutMs:   5000,
			MaintenanceIntervalMs: 300000,
		},
	}
}

// DefaultEngineConfig returns the default engine tunables.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleIntervalMs:    500,
		WindowMs:            1000,
		MaxHistory:          10,
		FlowThreshold:       2.0,
		EditingThreshold:    0.5,
		ReviewingThreshold:  0.1,
		GraceMs:             1500,
		ShortWaitMs:         6000,
		LongWaitMs:          8000,
		MidpointMs:          3000,
		MinLength:           15,
		CooldownMs:          30000,
		MinChangeFraction:   0.2,
		ManualMinLength:     10,
		InactivityTimeoutMs: 900000,
	}
}

// Runtime converts the file representation into the engine's own config.
func (e EngineConfig) Runtime() engine.Config {
	return engine.Config{
		SampleIntervalMs:    int64(e.SampleIntervalMs),
		WindowMs:            int64(e.WindowMs),
		MaxHistory:          e.MaxHistory,
		FlowThreshold:       e.FlowThreshold,
		EditingThreshold:    e.EditingThreshold,
		ReviewingThreshold:  e.ReviewingThreshold,
		GraceMs:             int64(e.GraceMs),
		ShortWaitMs:         int64(e.ShortWaitMs),
		LongWaitMs:          int64(e.LongWaitMs),
		MidpointMs:          int64(e.MidpointMs),
		MinLength:           e.MinLength,
		CooldownMs:          int64(e.CooldownMs),
		MinChangeFraction:   e.MinChangeFraction,
		ManualMinLength:     e.ManualMinLength,
		InactivityTimeoutMs: int64(e.InactivityTimeoutMs),
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get retrieves a configuration value by dot-separated key.
// For example: "engine.cooldown_ms" or "journal.enabled"
func (c *Config) Get(key string) (string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "engine":
		return c.getEngineField(field)
	case "daemon":
		return c.getDaemonField(field)
	case "hook":
		return c.getHookField(field)
	case "journal":
		return c.getJournalField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "engine":
		return c.setEngineField(field, value)
	case "daemon":
		return c.setDaemonField(field, value)
	case "hook":
		return c.setHookField(field, value)
	case "journal":
		return c.setJournalField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) getEngineField(field string) (string, error) {
	switch field {
	case "sample_interval_ms":
		return strconv.Itoa(c.Engine.SampleIntervalMs), nil
	case "window_ms":
		return strconv.Itoa(c.Engine.WindowMs), nil
	case "max_history":
		return strconv.Itoa(c.Engine.MaxHistory), nil
	case "flow_threshold":
		return formatFloat(c.Engine.FlowThreshold), nil
	case "editing_threshold":
		return formatFloat(c.Engine.EditingThreshold), nil
	case "reviewing_threshold":
		return formatFloat(c.Engine.ReviewingThreshold), nil
	case "grace_ms":
		return strconv.Itoa(c.Engine.GraceMs), nil
	case "short_wait_ms":
		return strconv.Itoa(c.Engine.ShortWaitMs), nil
	case "long_wait_ms":
		return strconv.Itoa(c.Engine.LongWaitMs), nil
	case "midpoint_ms":
		return strconv.Itoa(c.Engine.MidpointMs), nil
	case "min_length":
		return strconv.Itoa(c.Engine.MinLength), nil
	case "cooldown_ms":
		return strconv.Itoa(c.Engine.CooldownMs), nil
	case "min_change_fraction":
		return formatFloat(c.Engine.MinChangeFraction), nil
	case "manual_min_length":
		return strconv.Itoa(c.Engine.ManualMinLength), nil
	case "inactivity_timeout_ms":
		return strconv.Itoa(c.Engine.InactivityTimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown field: engine.%s", field)
	}
}

func (c *Config) setEngineField(field, value string) error {
	setInt := func(dst *int) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", field, err)
		}
		if v < 1 {
			return fmt.Errorf("invalid %s: must be >= 1", field)
		}
		*dst = v
		return nil
	}
	setFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", field, err)
		}
		if v < 0 {
			return fmt.Errorf("invalid %s: must be non-negative", field)
		}
		*dst = v
		return nil
	}

	switch field {
	case "sample_interval_ms":
		return setInt(&c.Engine.SampleIntervalMs)
	case "window_ms":
		return setInt(&c.Engine.WindowMs)
	case "max_history":
		return setInt(&c.Engine.MaxHistory)
	case "flow_threshold":
		return setFloat(&c.Engine.FlowThreshold)
	case "editing_threshold":
		return setFloat(&c.Engine.EditingThreshold)
	case "reviewing_threshold":
		return setFloat(&c.Engine.ReviewingThreshold)
	case "grace_ms":
		return setInt(&c.Engine.GraceMs)
	case "short_wait_ms":
		return setInt(&c.Engine.ShortWaitMs)
	case "long_wait_ms":
		return setInt(&c.Engine.LongWaitMs)
	case "midpoint_ms":
		return setInt(&c.Engine.MidpointMs)
	case "min_length":
		return setInt(&c.Engine.MinLength)
	case "cooldown_ms":
		return setInt(&c.Engine.CooldownMs)
	case "min_change_fraction":
		return setFloat(&c.Engine.MinChangeFraction)
	case "manual_min_length":
		return setInt(&c.Engine.ManualMinLength)
	case "inactivity_timeout_ms":
		return setInt(&c.Engine.InactivityTimeoutMs)
	default:
		return fmt.Errorf("unknown field: engine.%s", field)
	}
}

func (c *Config) getDaemonField(field string) (string, error) {
	switch field {
	case "log_level":
		return c.Daemon.LogLevel, nil
	case "log_file":
		return c.Daemon.LogFile, nil
	case "ingest_socket":
		return c.Daemon.IngestSocket, nil
	case "control_socket":
		return c.Daemon.ControlSocket, nil
	case "queue_max_events":
		return strconv.Itoa(c.Daemon.QueueMaxEvents), nil
	case "session_ttl_mins":
		return strconv.Itoa(c.Daemon.SessionTTLMins), nil
	case "idle_exit_mins":
		return strconv.Itoa(c.Daemon.IdleExitMins), nil
	default:
		return "", fmt.Errorf("unknown field: daemon.%s", field)
	}
}

func (c *Config) setDaemonField(field, value string) error {
	switch field {
	case "log_level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", value)
		}
		c.Daemon.LogLevel = value
	case "log_file":
		c.Daemon.LogFile = value
	case "ingest_socket":
		c.Daemon.IngestSocket = value
	case "control_socket":
		c.Daemon.ControlSocket = value
	case "queue_max_events":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for queue_max_events: %w", err)
		}
		if v < 1 {
			return fmt.Errorf("invalid queue_max_events: must be >= 1")
		}
		c.Daemon.QueueMaxEvents = v
	case "session_ttl_mins":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for session_ttl_mins: %w", err)
		}
		if v < 1 {
			return fmt.Errorf("invalid session_ttl_mins: must be >= 1")
		}
		c.Daemon.SessionTTLMins = v
	case "idle_exit_mins":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for idle_exit_mins: %w", err)
		}
		if v < 0 {
			return fmt.Errorf("invalid idle_exit_mins: must be non-negative")
		}
		c.Daemon.IdleExitMins = v
	default:
		return fmt.Errorf("unknown field: daemon.%s", field)
	}
	return nil
}

func (c *Config) getHookField(field string) (string, error) {
	switch field {
	case "connect_timeout_ms":
		return strconv.Itoa(c.Hook.ConnectTimeoutMs), nil
	case "write_timeout_ms":
		return strconv.Itoa(c.Hook.WriteTimeoutMs), nil
	case "auto_start_daemon":
		return strconv.FormatBool(c.Hook.AutoStartDaemon), nil
	default:
		return "", fmt.Errorf("unknown field: hook.%s", field)
	}
}

func (c *Config) setHookField(field, value string) error {
	switch field {
	case "connect_timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for connect_timeout_ms: %w", err)
		}
		if v < 1 {
			return fmt.Errorf("invalid connect_timeout_ms: must be >= 1")
		}
		c.Hook.ConnectTimeoutMs = v
	case "write_timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for write_timeout_ms: %w", err)
		}
		if v < 1 {
			return fmt.Errorf("invalid write_timeout_ms: must be >= 1")
		}
		c.Hook.WriteTimeoutMs = v
	case "auto_start_daemon":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for auto_start_daemon: %w", err)
		}
		c.Hook.AutoStartDaemon = v
	default:
		return fmt.Errorf("unknown field: hook.%s", field)
	}
	return nil
}

func (c *Config) getJournalField(field string) (string, error) {
	switch field {
	case "enabled":
		return strconv.FormatBool(c.Journal.Enabled), nil
	case "path":
		return c.Journal.Path, nil
	case "retention_days":
		return strconv.Itoa(c.Journal.RetentionDays), nil
	case "max_entries":
		return strconv.Itoa(c.Journal.MaxEntries), nil
	case "record_rejections":
		return strconv.FormatBool(c.Journal.RecordRejections), nil
	default:
		return "", fmt.Errorf("unknown field: journal.%s", field)
	}
}

func (c *Config) setJournalField(field, value string) error {
	switch field {
	case "enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for enabled: %w", err)
		}
		c.Journal.Enabled = v
	case "path":
		c.Journal.Path = value
	case "retention_days":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retention_days: %w", err)
		}
		if v < 0 {
			return fmt.Errorf("invalid retention_days: must be non-negative")
		}
		c.Journal.RetentionDays = v
	case "max_entries":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_entries: %w", err)
		}
		if v < 1000 {
			v = 1000
		}
		c.Journal.MaxEntries = v
	case "record_rejections":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for record_rejections: %w", err)
		}
		c.Journal.RecordRejections = v
	default:
		return fmt.Errorf("unknown field: journal.%s", field)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}

	if c.Daemon.IdleExitMins < 0 {
		return errors.New("daemon.idle_exit_mins must be >= 0")
	}

	if c.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}

	// Engine tunables never prevent startup; bad values fall back with warnings.
	c.Engine.ValidateAndFix()

	// Clamp daemon queue and session bounds.
	if c.Daemon.QueueMaxEvents < 1 {
		c.Daemon.QueueMaxEvents = DefaultConfig().Daemon.QueueMaxEvents
	}
	if c.Daemon.SessionTTLMins < 1 {
		c.Daemon.SessionTTLMins = DefaultConfig().Daemon.SessionTTLMins
	}
	if c.Journal.MaxEntries < 1000 {
		c.Journal.MaxEntries = 1000
	}
	if c.Hook.ConnectTimeoutMs < 1 {
		c.Hook.ConnectTimeoutMs = DefaultConfig().Hook.ConnectTimeoutMs
	}
	if c.Hook.WriteTimeoutMs < 1 {
		c.Hook.WriteTimeoutMs = DefaultConfig().Hook.WriteTimeoutMs
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables override config file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CADENCE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Daemon.LogLevel = "debug"
		}
	}
	if v := os.Getenv("CADENCE_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Daemon.LogLevel = v
		}
	}
	if v := os.Getenv("CADENCE_INGEST_SOCKET"); v != "" {
		c.Daemon.IngestSocket = v
	}
	if v := os.Getenv("CADENCE_CONTROL_SOCKET"); v != "" {
		c.Daemon.ControlSocket = v
	}
	if v := os.Getenv("CADENCE_HOOK_TIMEOUT_MS"); v != "" {
		if t, err := strconv.Atoi(v); err == nil && t >= 1 {
			c.Hook.ConnectTimeoutMs = t
		}
	}
	if v := os.Getenv("CADENCE_JOURNAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Journal.Enabled = b
		}
	}
}

// ListKeys returns user-facing configuration keys.
// Socket paths and file locations are derived, not exposed.
func ListKeys() []string {
	return []string{
		"engine.sample_interval_ms",
		"engine.window_ms",
		"engine.max_history",
		"engine.flow_threshold",
		"engine.editing_threshold",
		"engine.reviewing_threshold",
		"engine.grace_ms",
		"engine.short_wait_ms",
		"engine.long_wait_ms",
		"engine.midpoint_ms",
		"engine.min_length",
		"engine.cooldown_ms",
		"engine.min_change_fraction",
		"engine.manual_min_length",
		"engine.inactivity_timeout_ms",
		"daemon.log_level",
		"hook.auto_start_daemon",
		"journal.enabled",
		"journal.retention_days",
		"journal.record_rejections",
	}
}

// ValidationWarning represents a config validation warning.
type ValidationWarning struct {
	Field   string
	Message string
}

// ValidateAndFix validates engine tunables. Invalid values are fixed by
// falling back to defaults or clamping. Returns a list of warnings for
// diagnostics. Validation never prevents startup.
func (e *EngineConfig) ValidateAndFix() []ValidationWarning {
	defaults := DefaultEngineConfig()
	var warnings []ValidationWarning

	warn := func(field, msg string) {
		w := ValidationWarning{Field: field, Message: msg}
		warnings = append(warnings, w)
		log.Printf("WARN config: engine.%s: %s", field, msg)
	}

	// --- Durations and counts (must be >= 1) ---
	positives := []struct {
		name string
		val  *int
		def  int
	}{
		{"sample_interval_ms", &e.SampleIntervalMs, defaults.SampleIntervalMs},
		{"window_ms", &e.WindowMs, defaults.WindowMs},
		{"max_history", &e.MaxHistory, defaults.MaxHistory},
		{"grace_ms", &e.GraceMs, defaults.GraceMs},
		{"short_wait_ms", &e.ShortWaitMs, defaults.ShortWaitMs},
		{"long_wait_ms", &e.LongWaitMs, defaults.LongWaitMs},
		{"midpoint_ms", &e.MidpointMs, defaults.MidpointMs},
		{"min_length", &e.MinLength, defaults.MinLength},
		{"cooldown_ms", &e.CooldownMs, defaults.CooldownMs},
		{"manual_min_length", &e.ManualMinLength, defaults.ManualMinLength},
		{"inactivity_timeout_ms", &e.InactivityTimeoutMs, defaults.InactivityTimeoutMs},
	}
	for _, p := range positives {
		if *p.val < 1 {
			warn(p.name, fmt.Sprintf("must be >= 1, got %d; falling back to default %d", *p.val, p.def))
			*p.val = p.def
		}
	}

	// --- Threshold ordering (flow > editing > reviewing > 0) ---
	if e.ReviewingThreshold <= 0 || e.EditingThreshold <= e.ReviewingThreshold || e.FlowThreshold <= e.EditingThreshold {
		warn("thresholds", fmt.Sprintf("must satisfy flow > editing > reviewing > 0, got %g/%g/%g; falling back to defaults %g/%g/%g",
			e.FlowThreshold, e.EditingThreshold, e.ReviewingThreshold,
			defaults.FlowThreshold, defaults.EditingThreshold, defaults.ReviewingThreshold))
		e.FlowThreshold = defaults.FlowThreshold
		e.EditingThreshold = defaults.EditingThreshold
		e.ReviewingThreshold = defaults.ReviewingThreshold
	}

	// --- Change fraction (clamp to [0.0, 1.0]) ---
	if e.MinChangeFraction < 0.0 {
		warn("min_change_fraction", fmt.Sprintf("must be >= 0.0, got %f; clamping to 0.0", e.MinChangeFraction))
		e.MinChangeFraction = 0.0
	}
	if e.MinChangeFraction > 1.0 {
		warn("min_change_fraction", fmt.Sprintf("must be <= 1.0, got %f; clamping to 1.0", e.MinChangeFraction))
		e.MinChangeFraction = 1.0
	}

	// --- Midpoint must land inside the shortest countdown ---
	if e.MidpointMs >= e.ShortWaitMs {
		warn("midpoint_ms", fmt.Sprintf("must be < short_wait_ms (%d), got %d; falling back to default %d",
			e.ShortWaitMs, e.MidpointMs, defaults.MidpointMs))
		e.MidpointMs = defaults.MidpointMs
	}

	// --- Long wait must not undercut the short wait ---
	if e.LongWaitMs < e.ShortWaitMs {
		warn("long_wait_ms", fmt.Sprintf("must be >= short_wait_ms (%d), got %d; falling back to defaults %d/%d",
			e.ShortWaitMs, e.LongWaitMs, defaults.ShortWaitMs, defaults.LongWaitMs))
		e.ShortWaitMs = defaults.ShortWaitMs
		e.LongWaitMs = defaults.LongWaitMs
	}

	return warnings
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
