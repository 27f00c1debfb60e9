//go:build unix

package app

import (
	"os"
	"syscall"
)

// refreshSignals trigger a RefreshAll in `run` mode.
var refreshSignals = []os.Signal{syscall.SIGUSR1}
