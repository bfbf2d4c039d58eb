// Package schedule provides the timer abstraction used by the cache sweep,
// the layout readiness poll, and the preview manager's debounce and
// throttle. Production code uses the real clock; tests drive a ManualClock
// so that timers fire synchronously when time is advanced.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Handle cancels a scheduled task. Stop is idempotent.
type Handle interface {
	Stop()
}

// Clock tells time and schedules callbacks.
type Clock interface {
	Now() time.Time

	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Handle

	// Every runs fn every d until the handle is stopped.
	Every(d time.Duration, fn func()) Handle

	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real returns a Clock backed by package time.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Handle {
	return timerHandle{t: time.AfterFunc(d, fn)}
}

func (realClock) Every(d time.Duration, fn func()) Handle {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	return &tickerHandle{t: t, done: done}
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type timerHandle struct {
	t *time.Timer
}

func (h timerHandle) Stop() { h.t.Stop() }

type tickerHandle struct {
	t    *time.Ticker
	done chan struct{}
	once sync.Once
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() {
		h.t.Stop()
		close(h.done)
	})
}
