package testfixtures

import (
	"sync"
	"time"
)

// Clock is a controllable time source. With a non-zero step every Now call
// moves time forward, which gives successive writes distinct creation stamps
// the way a real clock would.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// NewSteppingClock returns a clock that advances by step after each read.
func NewSteppingClock(start time.Time, step time.Duration) *Clock {
	clock := NewClock(start)
	clock.step = step
	return clock
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Advance moves the clock forward, for example past a cache TTL.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}
