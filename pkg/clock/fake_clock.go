package clock

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a Clock implementation for unit tests. Now() returns a value
// that only advances when Advance() is called; NewContextWithTimeout still
// creates a real context.WithTimeout against wall-clock time, since tests
// exercise deadline expiry by controlling how long a fake backend call
// blocks, not by manipulating the deadline itself.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewContextWithTimeout implements Clock.
func (c *FakeClock) NewContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
