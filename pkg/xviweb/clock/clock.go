// Package clock provides the monotonic millisecond time source the
// engine uses for idle timeouts and continuation wake-up scheduling.
package clock

import "time"

// Clock gives the engine a monotonic millisecond reading. Every
// timing decision in the worker event loop goes through this
// interface instead of calling time.Now directly, so tests can drive
// it without real sleeps.
type Clock interface {
	NowMillis() int64
}

// System is the production Clock. It anchors to the instant New was
// called and reports elapsed time via time.Since, which reads Go's
// monotonic clock reading instead of the wall clock, so successive
// NowMillis() calls always advance even if NTP steps the wall clock
// backwards.
type System struct {
	start      time.Time
	startMillis int64
}

// NowMillis returns the current monotonic time in milliseconds since
// an arbitrary, process-local epoch. Only differences between two
// NowMillis() calls are meaningful.
func (s System) NowMillis() int64 {
	return s.startMillis + time.Since(s.start).Milliseconds()
}

// New returns the production Clock.
func New() Clock {
	return System{start: time.Now(), startMillis: time.Now().UnixMilli()}
}
