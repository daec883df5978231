package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Services built by ServiceFactory
// read it through NowFunc, so tests move through a booking's lifecycle by
// moving the clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime for the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = referenceTime
	}
	return &Clock{now: start.UTC()}
}

// Now returns the clock's current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now for dependency injection. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Until moves the clock to offset relative to anchor, typically a booking
// start, e.g. Until(start, -time.Hour) for one hour before the date.
func (c *Clock) Until(anchor time.Time, offset time.Duration) time.Time {
	target := anchor.Add(offset)
	c.Set(target)
	return target.UTC()
}
