// Package debounce coalesces bursts of calls into a single delayed call.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer runs only the most recently triggered function, once no new
// trigger has arrived for the quiet interval. Superseded functions never run.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration

	mu    sync.Mutex
	timer clockwork.Timer
	seq   uint64
}

// New creates a Debouncer that waits delay on the given clock.
func New(clock clockwork.Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Delay returns the quiet interval.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Trigger cancels any pending call and schedules fn after the quiet interval.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.seq == seq
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops the pending call, if any. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := d.timer != nil
	d.stopLocked()
	d.seq++
	return pending
}

// Pending reports whether a call is scheduled and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
