package cmd

import "testing"

func TestShouldDisableColorsHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if !shouldDisableColors() {
		t.Error("shouldDisableColors() = false with NO_COLOR set")
	}
}

func TestGetTermWidthFallback(t *testing.T) {
	// Test stdout is a pipe, so the ioctl path yields nothing and the
	// fallback must come through.
	if got := getTermWidth(120); got <= 0 {
		t.Errorf("getTermWidth(120) = %d, want a positive width", got)
	}
}
