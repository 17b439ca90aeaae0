// Package swtimer provides one-shot software timers whose callbacks run in
// their own goroutine, outside the caller's context.
//
// Start, Stop and Reset never block and are safe to call from edge
// handlers and from other timer callbacks. Each Start bumps a generation
// counter, so a callback that was already scheduled when the timer was
// stopped or restarted is discarded instead of racing with the new period.
//
// A Start that lands after the callback has been released still lets it
// run. Such a callback finds the timer Active again and should not act on
// the expiry.
package swtimer

import (
	"sync"
	"time"
)

// Timer is a restartable one-shot timer.
type Timer struct {
	name     string
	callback func()

	mu     sync.Mutex
	period time.Duration
	gen    uint64
	t      *time.Timer
}

// New creates a stopped timer that calls fn period after each Start.
func New(name string, period time.Duration, fn func()) *Timer {
	return &Timer{
		name:     name,
		period:   period,
		callback: fn,
	}
}

// Name returns the timer name given to New.
func (t *Timer) Name() string {
	return t.name
}

// Start (re)arms the timer for its current period, cancelling any pending
// expiry.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.arm()
}

// Reset changes the period and (re)arms the timer.
func (t *Timer) Reset(period time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.period = period
	t.arm()
}

// Stop cancels a pending expiry. It reports whether the timer was armed.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.t == nil {
		return false
	}
	stopped := t.t.Stop()
	t.t = nil

	return stopped
}

// Active reports whether an expiry is pending.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.t != nil
}

// Period returns the current period.
func (t *Timer) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.period
}

func (t *Timer) arm() {
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.t = time.AfterFunc(t.period, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.t = nil
	t.mu.Unlock()

	if t.callback != nil {
		t.callback()
	}
}
