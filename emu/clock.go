package emu

import (
	"sync"
	"time"
)

// Clock is virtual time: Sleep advances it instantly.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	start time.Time
}

func NewClock() *Clock {
	t := time.Date(1994, time.March, 1, 0, 0, 0, 0, time.UTC)
	return &Clock{now: t, start: t}
}

func (c *Clock) Sleep(ms int) {
	c.Advance(time.Duration(ms) * time.Millisecond)
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed is the virtual time since the clock was created.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}
