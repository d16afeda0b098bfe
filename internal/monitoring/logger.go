// Package monitoring carries the process-wide diagnostic logger and a small
// timing helper for long-running operations (imports, range estimation).
package monitoring

import (
	"log"
	"time"
)

// Logf is where import and analytics diagnostics go. The default writes
// through log.Printf; swap it with SetLogger to capture output in tests or
// route it elsewhere.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger swaps the diagnostic sink. nil mutes all output.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// TimeOp logs the duration of a named operation. Use with defer:
//
//	defer monitoring.TimeOp("csv import")()
func TimeOp(name string) func() {
	start := time.Now()
	return func() {
		Logf("%s took %s", name, time.Since(start).Round(time.Millisecond))
	}
}
