// Package debounce coalesces bursts of calls into a single trailing call.
//
// A Debouncer wraps a target function. Every Call re-arms a one-shot timer
// for the full delay and remembers only the latest arguments; when the timer
// finally expires the target runs once with those arguments. Calls spaced at
// least the delay apart each produce their own execution.
//
// The target never runs on the caller's goroutine (except through Flush) and
// its return value is not observable. A panic in the target is not recovered.
// Owners of long-lived debouncers should call Close, or pass WithContext, when
// the owning scope ends so no stale callback fires afterwards.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type Debouncer[T any] struct {
	clock  clockwork.Clock
	delay  time.Duration
	logger zerolog.Logger
	target func(T)

	mu      sync.Mutex
	args    T
	closed  bool
	gen     uint64 // bumped on every transition; a timer only fires if its gen is current
	pending bool
	stopCtx func() bool
	timer   clockwork.Timer
}

// New returns an idle Debouncer that runs target delay after the most recent
// Call. A negative delay is treated as zero.
func New[T any](delay time.Duration, target func(T), opts ...Option) *Debouncer[T] {
	o := buildOptions(opts)
	if delay < 0 {
		delay = 0
	}
	d := &Debouncer[T]{
		clock:  o.clock,
		delay:  delay,
		logger: o.logger,
		target: target,
	}
	if o.ctx != nil {
		d.stopCtx = context.AfterFunc(o.ctx, d.Close)
	}
	return d
}

// Func debounces a function without arguments. The returned cancel drops any
// pending execution.
func Func(delay time.Duration, target func(), opts ...Option) (call func(), cancel func()) {
	d := New(delay, func(struct{}) { target() }, opts...)
	return func() { d.Call(struct{}{}) }, func() { d.Cancel() }
}

// Call discards any pending execution and schedules a new one with args after
// the full delay. It never blocks on the target.
func (d *Debouncer[T]) Call(args T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.logger.Debug().Msg("debounce call after close ignored")
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.args = args
	d.pending = true
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
	d.logger.Debug().Dur("delay", d.delay).Uint64("gen", gen).Msg("debounce armed")
}

// Cancel drops the pending execution, if any, and reports whether there was one.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

// Flush runs the pending execution immediately on the calling goroutine and
// reports whether there was one to run.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.gen++
	args := d.takeLocked()
	d.mu.Unlock()

	d.logger.Debug().Msg("debounce flushed")
	d.target(args)
	return true
}

// Pending reports whether an execution is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close cancels the pending execution and makes every later Call a no-op.
// It is safe to call more than once.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.cancelLocked()
	if d.stopCtx != nil {
		d.stopCtx()
	}
	d.logger.Debug().Msg("debounce closed")
}

func (d *Debouncer[T]) cancelLocked() bool {
	if !d.pending {
		return false
	}
	d.timer.Stop()
	d.gen++
	d.takeLocked()
	d.logger.Debug().Msg("debounce cancelled")
	return true
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if !d.pending || gen != d.gen {
		// Superseded while the timer was already firing.
		d.mu.Unlock()
		return
	}
	args := d.takeLocked()
	d.mu.Unlock()

	d.logger.Debug().Uint64("gen", gen).Msg("debounce fired")
	d.target(args)
}

// takeLocked returns the latest arguments and moves the debouncer back to idle.
func (d *Debouncer[T]) takeLocked() T {
	var zero T
	args := d.args
	d.args = zero
	d.pending = false
	d.timer = nil
	return args
}
