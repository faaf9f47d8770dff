package cmd

import (
	"os"

	"github.com/muesli/termenv"
)

// ANSI color codes for terminal output.
// These are initialized in init() and may be disabled per terminal profile.
var (
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[0;33m"
	colorCyan   = "\033[0;36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

func init() {
	if shouldDisableColors() {
		colorRed = ""
		colorGreen = ""
		colorYellow = ""
		colorCyan = ""
		colorDim = ""
		colorBold = ""
		colorReset = ""
	}
}

// shouldDisableColors defers to termenv, which covers NO_COLOR, TERM=dumb,
// non-TTY output, and Windows console capabilities.
func shouldDisableColors() bool {
	if termenv.EnvNoColor() {
		return true
	}
	return termenv.NewOutput(os.Stdout).ColorProfile() == termenv.Ascii
}

// getTermWidth returns the terminal column count, or the fallback when the
// width cannot be determined (not a TTY, or an environment without ioctl).
func getTermWidth(fallback int) int {
	if w := getTermWidthIoctl(); w > 0 {
		return w
	}
	return fallback
}
