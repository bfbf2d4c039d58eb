package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock whose time only moves when Advance or Sleep is
// called. Due callbacks run synchronously on the advancing goroutine, in
// deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	seq      int
	at       time.Time
	interval time.Duration
	fn       func()
	stopped  bool
}

func (t *manualTimer) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// NewManual returns a ManualClock starting at start.
func NewManual(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once d after the current time.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Handle {
	return c.schedule(d, 0, fn)
}

// Every schedules fn every d. A non-positive d is treated as one nanosecond.
func (c *ManualClock) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		d = time.Nanosecond
	}
	return c.schedule(d, d, fn)
}

// Sleep advances the clock by d, running whatever falls due.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return ctx.Err()
}

// Pending returns the number of live scheduled callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and fires every callback whose
// deadline falls within the window. Callbacks scheduled by callbacks are
// honored if they fall due before the window ends.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		if next.interval > 0 {
			next.at = next.at.Add(next.interval)
		} else {
			next.stopped = true
		}
		fn := next.fn
		c.mu.Unlock()
		fn()
	}
}

func (c *ManualClock) schedule(d, interval time.Duration, fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, seq: c.seq, at: c.now.Add(d), interval: interval, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// nextDue prunes stopped timers and returns the earliest live timer due at
// or before target. Caller holds c.mu.
func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	if len(c.timers) == 0 || c.timers[0].at.After(target) {
		return nil
	}
	return c.timers[0]
}
