package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests.
//
// Each call to Now returns the current instant and then advances it by
// Step. A zero Step makes it a fixed clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewStepClock creates a clock starting at start (converted to UTC).
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	start = start.UTC()
	return &StepClock{start: start, now: start, step: step}
}

// NewFixedClock creates a clock that always returns t.
func NewFixedClock(t time.Time) *StepClock {
	return NewStepClock(t, 0)
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next instant Now will return without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Used to cross period boundaries in tests.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Reset returns the clock to its start instant.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
