package search

import (
	"sync"
	"time"
)

// Debouncer runs at most one delayed action at a time. Scheduling a new
// action stops the pending one; a stopped action never runs.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending uint64
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Delay returns the configured quiet period
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Schedule arranges for fn to run after the quiet period, replacing any
// pending action. It reports whether a pending action was discarded.
func (d *Debouncer) Schedule(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	replaced := d.stopLocked()
	d.pending++
	id := d.pending
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending != id {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	return replaced
}

// Cancel discards the pending action, if any, and reports whether one was discarded
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Pending reports whether an action is waiting to fire
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	// a callback that already fired will see a newer id and bail out
	d.pending++
	return true
}
