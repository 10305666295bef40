// Package debounce provides a cancellable idle-window timer.
//
// A Debouncer delivers only the last value pushed within the idle window.
// It owns the only timer in the list workflow, so the pure query engine never
// holds timer state.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays delivering a value until no newer value has been pushed
// for the configured delay. It is safe for concurrent use. The callback runs
// on the timer's goroutine.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	armed   bool
	stopped bool

	// gen identifies the current timer; a timer that fires after being
	// superseded sees a newer generation and does nothing.
	gen uint64

	// running counts callbacks in progress so Stop can wait for them.
	running sync.WaitGroup
}

// New creates a Debouncer that calls fn with the settled value.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Push records v and restarts the idle window. Any pending value is
// superseded. Push after Stop is ignored.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = v
	d.armed = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers the pending value immediately, if any, and reports whether
// it did.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.armed {
		d.mu.Unlock()
		return false
	}
	v := d.take()
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn(v)
	return true
}

// Pending reports whether a value is waiting for the idle window to close.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Stop cancels any pending delivery, disables the Debouncer and waits for a
// callback already in progress to return, so nothing is delivered after Stop
// returns. It is called on view teardown and is safe to call more than once.
// Stop must not be called from the callback.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.armed {
		d.take()
	}
	d.mu.Unlock()

	d.running.Wait()
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn(v)
}

// take clears the pending state and returns the value. Caller must hold d.mu.
func (d *Debouncer[T]) take() T {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	v := d.pending
	var zero T
	d.pending = zero
	d.armed = false
	d.gen++
	return v
}
