// Package monitoring holds the process-wide diagnostic loggers used by the
// engine and its supporting services.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be swapped with SetLogger, for example to capture output in tests.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces Logf. nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug enables or disables Debugf output.
func SetDebug(on bool) { debug.Store(on) }

// DebugEnabled reports whether Debugf currently logs.
func DebugEnabled() bool { return debug.Load() }

// Debugf logs through Logf only when debug output is enabled. It is meant
// for per-frame traces that would flood the log at normal verbosity.
func Debugf(format string, v ...interface{}) {
	if !debug.Load() {
		return
	}
	Logf(format, v...)
}
