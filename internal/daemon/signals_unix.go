//go:build !windows

package daemon

import (
	"os"
	"os/signal"
	"syscall"
)

// Operator signals: SIGHUP reloads configuration, SIGUSR1 dumps counters.
var (
	reloadSignal os.Signal = syscall.SIGHUP
	statsSignal  os.Signal = syscall.SIGUSR1
)

// notifySignals registers the daemon's signal set on ch and suppresses
// SIGPIPE from half-closed hook connections.
func notifySignals(ch chan<- os.Signal) {
	signal.Ignore(syscall.SIGPIPE)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGUSR1)
}
