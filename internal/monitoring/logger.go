// Package monitoring provides the package-level diagnostic logger shared
// across the lane pipeline.
package monitoring

import (
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced by SetLogger. Tests or production code can
// redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// debugEnabled gates Debugf output; set LANEFLOW_DEBUG to any non-empty
// value to enable.
var debugEnabled = os.Getenv("LANEFLOW_DEBUG") != ""

// SetLogger replaces the package logger. Passing nil will set a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs through Logf only when debug output is enabled. Used on
// per-frame paths where unconditional logging would flood output.
func Debugf(format string, v ...interface{}) {
	if debugEnabled {
		Logf("debug: "+format, v...)
	}
}
