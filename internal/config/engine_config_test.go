package config

import (
	"testing"
)

func TestDefaultEngineConfigHasNoWarnings(t *testing.T) {
	cfg := DefaultEngineConfig()
	warnings := cfg.ValidateAndFix()
	if len(warnings) != 0 {
		t.Errorf("DefaultEngineConfig should produce no warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestValidateAndFixDurations(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*EngineConfig)
		check  func(*testing.T, *EngineConfig)
	}{
		{
			name:   "zero_sample_interval",
			modify: func(e *EngineConfig) { e.SampleIntervalMs = 0 },
			check: func(t *testing.T, e *EngineConfig) {
				if e.SampleIntervalMs != 500 {
					t.Errorf("SampleIntervalMs = %d, want 500", e.SampleIntervalMs)
				}
			},
		},
		{
			name:   "negative_grace",
			modify: func(e *EngineConfig) { e.GraceMs = -100 },
			check: func(t *testing.T, e *EngineConfig) {
				if e.GraceMs != 1500 {
					t.Errorf("GraceMs = %d, want 1500", e.GraceMs)
				}
			},
		},
		{
			name:   "zero_max_history",
			modify: func(e *EngineConfig) { e.MaxHistory = 0 },
			check: func(t *testing.T, e *EngineConfig) {
				if e.MaxHistory != 10 {
					t.Errorf("MaxHistory = %d, want 10", e.MaxHistory)
				}
			},
		},
		{
			name:   "negative_inactivity",
			modify: func(e *EngineConfig) { e.InactivityTimeoutMs = -1 },
			check: func(t *testing.T, e *EngineConfig) {
				if e.InactivityTimeoutMs != 900000 {
					t.Errorf("InactivityTimeoutMs = %d, want 900000", e.InactivityTimeoutMs)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tt.modify(&cfg)
			warnings := cfg.ValidateAndFix()
			if len(warnings) == 0 {
				t.Error("expected at least one warning")
			}
			tt.check(t, &cfg)
		})
	}
}

func TestValidateAndFixThresholdOrdering(t *testing.T) {
	tests := []struct {
		name      string
		flow      float64
		editing   float64
		reviewing float64
		wantFix   bool
	}{
		{"default_order", 2.0, 0.5, 0.1, false},
		{"custom_valid_order", 5.0, 1.0, 0.5, false},
		{"inverted", 0.1, 0.5, 2.0, true},
		{"flow_below_editing", 0.4, 0.5, 0.1, true},
		{"editing_below_reviewing", 2.0, 0.05, 0.1, true},
		{"zero_reviewing", 2.0, 0.5, 0.0, true},
		{"all_equal", 1.0, 1.0, 1.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.FlowThreshold = tt.flow
			cfg.EditingThreshold = tt.editing
			cfg.ReviewingThreshold = tt.reviewing

			warnings := cfg.ValidateAndFix()

			if tt.wantFix {
				if len(warnings) == 0 {
					t.Fatal("expected a threshold-order warning")
				}
				if cfg.FlowThreshold != 2.0 || cfg.EditingThreshold != 0.5 || cfg.ReviewingThreshold != 0.1 {
					t.Errorf("thresholds = %g/%g/%g, want defaults 2/0.5/0.1",
						cfg.FlowThreshold, cfg.EditingThreshold, cfg.ReviewingThreshold)
				}
			} else {
				if len(warnings) != 0 {
					t.Errorf("unexpected warnings: %v", warnings)
				}
				if cfg.FlowThreshold != tt.flow {
					t.Errorf("FlowThreshold changed from %g to %g", tt.flow, cfg.FlowThreshold)
				}
			}
		})
	}
}

func TestValidateAndFixChangeFractionClamping(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"below_zero", -0.5, 0.0},
		{"at_zero", 0.0, 0.0},
		{"normal", 0.2, 0.2},
		{"at_one", 1.0, 1.0},
		{"above_one", 1.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.MinChangeFraction = tt.value
			cfg.ValidateAndFix()
			if cfg.MinChangeFraction != tt.want {
				t.Errorf("MinChangeFraction = %v, want %v", cfg.MinChangeFraction, tt.want)
			}
		})
	}
}

func TestValidateAndFixMidpointInsideShortWait(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MidpointMs = 7000 // beyond the 6000ms short wait

	warnings := cfg.ValidateAndFix()
	if len(warnings) == 0 {
		t.Fatal("expected a midpoint warning")
	}
	if cfg.MidpointMs != 3000 {
		t.Errorf("MidpointMs = %d, want default 3000", cfg.MidpointMs)
	}
}

func TestValidateAndFixWaitOrdering(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.ShortWaitMs = 9000
	cfg.LongWaitMs = 4000

	warnings := cfg.ValidateAndFix()
	if len(warnings) == 0 {
		t.Fatal("expected a wait-order warning")
	}
	if cfg.ShortWaitMs != 6000 || cfg.LongWaitMs != 8000 {
		t.Errorf("waits = %d/%d, want defaults 6000/8000", cfg.ShortWaitMs, cfg.LongWaitMs)
	}
}

func TestRuntimeConversionMatchesEngineDefaults(t *testing.T) {
	// The file defaults and the engine's built-in defaults must be the same
	// numbers, or an empty config file would change behavior.
	got := DefaultEngineConfig().Runtime()

	if got.SampleIntervalMs != 500 || got.WindowMs != 1000 || got.MaxHistory != 10 {
		t.Errorf("sampling conversion mismatch: %+v", got)
	}
	if got.FlowThreshold != 2.0 || got.EditingThreshold != 0.5 || got.ReviewingThreshold != 0.1 {
		t.Errorf("threshold conversion mismatch: %+v", got)
	}
	if got.GraceMs != 1500 || got.ShortWaitMs != 6000 || got.LongWaitMs != 8000 || got.MidpointMs != 3000 {
		t.Errorf("countdown conversion mismatch: %+v", got)
	}
	if got.MinLength != 15 || got.CooldownMs != 30000 || got.MinChangeFraction != 0.2 || got.ManualMinLength != 10 {
		t.Errorf("gate conversion mismatch: %+v", got)
	}
	if got.InactivityTimeoutMs != 900000 {
		t.Errorf("guard conversion mismatch: %+v", got)
	}
}

func TestRuntimeConversionCarriesOverrides(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.CooldownMs = 60000
	cfg.MinLength = 25
	cfg.FlowThreshold = 4.0

	got := cfg.Runtime()
	if got.CooldownMs != 60000 {
		t.Errorf("CooldownMs = %d, want 60000", got.CooldownMs)
	}
	if got.MinLength != 25 {
		t.Errorf("MinLength = %d, want 25", got.MinLength)
	}
	if got.FlowThreshold != 4.0 {
		t.Errorf("FlowThreshold = %v, want 4.0", got.FlowThreshold)
	}
}
