//go:build windows

package daemon

import (
	"os"
	"os/signal"
	"syscall"
)

// Windows delivers no SIGHUP/SIGUSR1 equivalents; reload and stats dump are
// reachable only through the control API there.
var (
	reloadSignal os.Signal
	statsSignal  os.Signal
)

// notifySignals registers the daemon's signal set on ch.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
}
