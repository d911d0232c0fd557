package debounce

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler runs fn at most once per interval. The first value of a burst is
// delivered immediately; the last value seen while throttled is delivered
// when the next slot opens, so the final state is never lost.
type Throttler[T any] struct {
	fn      func(T)
	limiter *rate.Limiter
	now     func() time.Time

	run sync.Mutex

	mu          sync.Mutex
	timer       *time.Timer
	reservation *rate.Reservation
	pending     bool
	value       T
	gen         uint64
}

func NewThrottler[T any](interval time.Duration, fn func(T)) *Throttler[T] {
	return &Throttler[T]{
		fn:      fn,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
	}
}

// Schedule delivers v now if a slot is free, otherwise holds it for the
// trailing delivery, replacing any value already held.
func (t *Throttler[T]) Schedule(v T) {
	t.mu.Lock()
	now := t.now()
	if t.timer == nil && t.limiter.AllowN(now, 1) {
		t.mu.Unlock()
		t.call(v)
		return
	}

	t.value = v
	t.pending = true
	if t.timer == nil {
		t.reservation = t.limiter.ReserveN(now, 1)
		gen := t.gen
		t.timer = time.AfterFunc(t.reservation.DelayFrom(now), func() { t.trailing(gen) })
	}
	t.mu.Unlock()
}

// Flush delivers the held value immediately, if any.
func (t *Throttler[T]) Flush() bool {
	t.run.Lock()
	defer t.run.Unlock()

	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return false
	}
	v := t.value
	t.resetLocked(false)
	t.mu.Unlock()

	t.fn(v)
	return true
}

// Cancel drops the held value and gives its reserved slot back.
func (t *Throttler[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked(true)
}

func (t *Throttler[T]) trailing(gen uint64) {
	t.run.Lock()
	defer t.run.Unlock()

	t.mu.Lock()
	if gen != t.gen || !t.pending {
		t.mu.Unlock()
		return
	}
	v := t.value
	t.resetLocked(false)
	t.mu.Unlock()

	t.fn(v)
}

func (t *Throttler[T]) call(v T) {
	t.run.Lock()
	defer t.run.Unlock()
	t.fn(v)
}

func (t *Throttler[T]) resetLocked(cancelReservation bool) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.reservation != nil {
		if cancelReservation {
			t.reservation.CancelAt(t.now())
		}
		t.reservation = nil
	}
	var zero T
	t.value = zero
	t.pending = false
	t.gen++
}
