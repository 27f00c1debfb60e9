//go:build !unix

package app

import "os"

var refreshSignals []os.Signal
