// Package debounce provides timer-owning helpers for taming high-frequency
// event streams. A Debouncer coalesces a burst into its last value once the
// stream goes quiet; a Throttler runs at most once per interval while the
// stream is still flowing.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delivers the most recent scheduled value after wait has passed
// without another Schedule call. A newer value supersedes the pending one.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	// run serializes deliveries so values reach fn in schedule order.
	run sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	value   T
	gen     uint64
}

func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Schedule replaces any pending value with v and restarts the quiet window.
func (d *Debouncer[T]) Schedule(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = v
	d.pending = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.deliver(gen) })
}

// Flush synchronously delivers the pending value, if any, and reports
// whether something was delivered.
func (d *Debouncer[T]) Flush() bool {
	return d.deliver(0)
}

// Cancel drops the pending value without delivering it.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
}

// Pending reports whether a value is waiting to be delivered.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// deliver hands the pending value to fn. A non-zero gen only matches the
// Schedule call that armed the timer, so stale timers are ignored.
func (d *Debouncer[T]) deliver(gen uint64) bool {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	if !d.pending || (gen != 0 && gen != d.gen) {
		d.mu.Unlock()
		return false
	}
	v := d.value
	d.stopLocked()
	d.mu.Unlock()

	d.fn(v)
	return true
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.value = zero
	d.pending = false
	d.gen++
}
