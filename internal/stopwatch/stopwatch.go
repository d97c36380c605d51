// Package stopwatch is a tiny non-realtime timing helper for tests and
// self-checks that assert some operation completes within a deadline
// (spec §4.7, C7: the worker pool's per-period budget). It has no place
// on the realtime path itself, only in the tooling that watches it.
package stopwatch

import "time"

// Stopwatch measures elapsed wall-clock time from the moment it was
// started.
type Stopwatch struct {
	start time.Time
}

// Start returns a running stopwatch.
func Start() Stopwatch { return Stopwatch{start: time.Now()} }

// Elapsed returns the time since Start was called.
func (s Stopwatch) Elapsed() time.Duration { return time.Since(s.start) }

// Within runs fn and reports whether it returned before deadline elapsed.
func Within(deadline time.Duration, fn func()) (time.Duration, bool) {
	sw := Start()
	fn()
	elapsed := sw.Elapsed()
	return elapsed, elapsed <= deadline
}
