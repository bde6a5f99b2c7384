package testfixtures

import (
	"sync"
	"time"
)

var referenceTime = time.Date(2024, time.May, 6, 7, 0, 0, 0, time.UTC)

// ReferenceTime is Monday 2024-05-06 07:00 UTC, one hour before the default
// business window opens.
func ReferenceTime() time.Time {
	return referenceTime
}

// Day returns midnight UTC of the reference week's day offset (0 is Monday).
func Day(offset int) time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC)
}

// At returns the given wall-clock time on Day(offset).
func At(offset, hour, minute int) time.Time {
	return Day(offset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Clock provides a controllable time source. When step is non-zero every
// call to Now advances the clock afterwards, so successive records get
// strictly increasing timestamps.
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

// NewSteppingClock is NewClock with an automatic step per reading.
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

// NowFunc exposes Now for injection; a nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Peek returns the clock time without stepping.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
