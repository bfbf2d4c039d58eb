package schedule

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Debouncer delays a call until no new call has arrived for the wait
// period. Only the last call's function runs.
type Debouncer struct {
	clock Clock
	wait  time.Duration

	mu      sync.Mutex
	pending Handle
}

// NewDebouncer returns a Debouncer on clock with the given wait.
func NewDebouncer(clock Clock, wait time.Duration) *Debouncer {
	return &Debouncer{clock: clock, wait: wait}
}

// Call schedules fn, replacing any call still waiting.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = d.clock.AfterFunc(d.wait, fn)
}

// Stop drops the waiting call, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Throttler lets at most one call through per interval. The last call
// made inside a window runs when the window closes; earlier ones in the
// same window are dropped.
type Throttler struct {
	clock    Clock
	interval time.Duration

	mu       sync.Mutex
	last     time.Time
	ran      bool
	trailing func()
	pending  Handle
}

// NewThrottler returns a Throttler on clock with the given interval.
func NewThrottler(clock Clock, interval time.Duration) *Throttler {
	return &Throttler{clock: clock, interval: interval}
}

// Call runs fn now if the interval has elapsed since the last call that ran
// and reports whether it did. Otherwise fn replaces the trailing call of
// the current window.
func (t *Throttler) Call(fn func()) bool {
	t.mu.Lock()
	now := t.clock.Now()
	if t.ran && now.Sub(t.last) < t.interval {
		t.trailing = fn
		if t.pending == nil {
			t.pending = t.clock.AfterFunc(t.interval-now.Sub(t.last), t.fire)
		}
		t.mu.Unlock()
		return false
	}
	t.stopLocked()
	t.last = now
	t.ran = true
	t.mu.Unlock()
	fn()
	return true
}

func (t *Throttler) fire() {
	t.mu.Lock()
	fn := t.trailing
	t.trailing, t.pending = nil, nil
	if fn == nil {
		t.mu.Unlock()
		return
	}
	t.last = t.clock.Now()
	t.ran = true
	t.mu.Unlock()
	fn()
}

// Stop drops the trailing call, if any.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Throttler) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
	}
	t.trailing, t.pending = nil, nil
}

// ErrPollExhausted is returned by Poll when the condition never held.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// Poll checks cond, then sleeps interval and checks again, up to attempts
// sleeps. It returns nil as soon as cond holds, ctx.Err() if the context
// ends, and ErrPollExhausted otherwise.
func Poll(ctx context.Context, clock Clock, interval time.Duration, attempts int, cond func() bool) error {
	if cond() {
		return nil
	}
	for i := 0; i < attempts; i++ {
		if err := clock.Sleep(ctx, interval); err != nil {
			return err
		}
		if cond() {
			return nil
		}
	}
	return ErrPollExhausted
}
