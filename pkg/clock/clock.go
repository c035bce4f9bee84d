// Package clock abstracts away the parts of the standard library that deal
// with wall-clock time and timeouts, so that the sync queue's add_timestamp
// and other wall-clock reads can be driven by a fake clock in tests.
// FakeClock still creates real timeouts, so per-backend deadlines run on
// wall-clock time even in tests.
package clock

import (
	"context"
	"time"
)

// Clock is an interface around some of the standard library functions that
// provide time handling.
type Clock interface {
	// Now returns the current wall-clock time. Used to measure per-backend
	// latency and to stamp ctime and sync queue entries.
	Now() time.Time

	// NewContextWithTimeout creates a context that is cancelled after
	// timeout elapses. Every per-backend call in the multiplexer is
	// wrapped in one of these, independently of its siblings.
	NewContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc)
}

// SystemClock is a Clock backed by the operating system's notion of time.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
