// Package config provides configuration management for cadence.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all the path configurations for cadence.
type Paths struct {
	// ConfigDir is the directory for configuration files (~/.config/cadence)
	ConfigDir string

	// DataDir is the directory for data files (~/.local/share/cadence)
	DataDir string

	// RuntimeDir is the directory for daemon-private runtime files (PID and
	// lock files). Socket paths are owned by internal/transport, which the
	// hook binary can use without loading configuration.
	RuntimeDir string
}

// DefaultPaths returns the default paths based on XDG Base Directory spec.
// On Windows, it uses %APPDATA% instead.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir:  filepath.Join(appData, "cadence"),
			DataDir:    filepath.Join(localAppData, "cadence"),
			RuntimeDir: filepath.Join(localAppData, "cadence", "run"),
		}
	}

	// Unix-like systems follow XDG Base Directory spec
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		// Fallback to ~/.cadence/run for runtime files
		runtimeDir = filepath.Join(home, ".cadence", "run")
	} else {
		runtimeDir = filepath.Join(runtimeDir, "cadence")
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, "cadence"),
		DataDir:    filepath.Join(dataHome, "cadence"),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// JournalFile returns the path to the SQLite trigger journal.
func (p *Paths) JournalFile() string {
	return filepath.Join(p.DataDir, "journal.db")
}

// PIDFile returns the path to the daemon PID file.
func (p *Paths) PIDFile() string {
	return filepath.Join(p.RuntimeDir, "cadenced.pid")
}

// LockFile returns the path to the daemon singleton lock file.
func (p *Paths) LockFile() string {
	return filepath.Join(p.RuntimeDir, "cadenced.lock")
}

// LogDir returns the path to the log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// LogFile returns the path to the daemon log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogDir(), "cadenced.log")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.RuntimeDir,
		p.LogDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
