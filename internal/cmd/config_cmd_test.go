package cmd

import (
	"os"
	"strings"
	"testing"

	"github.com/runger/cadence/internal/config"
)

func TestConfigList(t *testing.T) {
	isolateHome(t)

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, nil); err != nil {
			t.Errorf("runConfig() error = %v", err)
		}
	})

	for _, key := range []string{
		"engine.flow_threshold",
		"engine.cooldown_ms",
		"daemon.log_level",
		"hook.auto_start_daemon",
		"journal.enabled",
	} {
		if !strings.Contains(out, key) {
			t.Errorf("config list missing key %q:\n%s", key, out)
		}
	}
	if !strings.Contains(out, "config.yaml") {
		t.Errorf("config list missing file path:\n%s", out)
	}
}

func TestConfigGet(t *testing.T) {
	isolateHome(t)

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"engine.min_length"}); err != nil {
			t.Errorf("runConfig() error = %v", err)
		}
	})
	if strings.TrimSpace(out) != "15" {
		t.Errorf("config get engine.min_length = %q, want 15", strings.TrimSpace(out))
	}
}

func TestConfigGetUnknownKey(t *testing.T) {
	isolateHome(t)

	err := runConfig(configCmd, []string{"engine.does_not_exist"})
	if err == nil {
		t.Fatal("runConfig() accepted an unknown key")
	}
}

func TestConfigSetRoundTrip(t *testing.T) {
	isolateHome(t)

	captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"engine.cooldown_ms", "45000"}); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	})

	// The file exists and a fresh load sees the value.
	paths := config.DefaultPaths()
	if _, err := os.Stat(paths.ConfigFile()); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	if cfg.Engine.CooldownMs != 45000 {
		t.Errorf("CooldownMs = %d, want 45000", cfg.Engine.CooldownMs)
	}

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"engine.cooldown_ms"}); err != nil {
			t.Errorf("get after set failed: %v", err)
		}
	})
	if strings.TrimSpace(out) != "45000" {
		t.Errorf("get after set = %q, want 45000", strings.TrimSpace(out))
	}
}

func TestConfigSetRejectsInvalidValue(t *testing.T) {
	isolateHome(t)

	err := runConfig(configCmd, []string{"engine.cooldown_ms", "not-a-number"})
	if err == nil {
		t.Fatal("runConfig() accepted a non-numeric value")
	}
}

func TestConfigSetClampsEngineValues(t *testing.T) {
	isolateHome(t)

	// Engine tunables never block the save; out-of-range values fall back
	// to defaults before hitting disk.
	captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"engine.sample_interval_ms", "-100"}); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	})

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	if cfg.Engine.SampleIntervalMs != config.DefaultEngineConfig().SampleIntervalMs {
		t.Errorf("SampleIntervalMs = %d, want clamped default", cfg.Engine.SampleIntervalMs)
	}
}

func TestConfigSetRejectsInvalidLogLevel(t *testing.T) {
	isolateHome(t)

	err := runConfig(configCmd, []string{"daemon.log_level", "chatty"})
	if err == nil {
		t.Fatal("runConfig() accepted a bogus log level")
	}
	if _, statErr := os.Stat(config.DefaultPaths().ConfigFile()); statErr == nil {
		t.Error("invalid value was still written to disk")
	}
}
