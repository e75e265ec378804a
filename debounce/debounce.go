// Package debounce coalesces bursts of calls into a single invocation of a
// target function, with optional leading-edge invocation and a ceiling on how
// long an invocation may be postponed.
package debounce

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Options struct {
	// Leading invokes immediately on the first call of an idle scheduler.
	Leading bool
	// Wait is the quiet period required before a deferred invocation runs.
	Wait time.Duration
	// MaxWait forces an invocation once this much time has passed since the
	// last one. Zero means unbounded.
	MaxWait time.Duration
	Clock   clockwork.Clock
}

// Func is a debounced wrapper around a func(T). Only the most recent
// arguments survive; intermediate calls are superseded.
type Func[T any] struct {
	opts  Options
	clock clockwork.Clock

	mu            sync.Mutex
	idle          *sync.Cond
	running       int
	fn            func(T)
	timer         clockwork.Timer
	gen           uint64
	lastInvokedAt time.Time
	lastArgs      T
	disabled      bool
}

func New[T any](fn func(T), opts Options) *Func[T] {
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	if opts.MaxWait < 0 {
		opts.MaxWait = 0
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	d := &Func[T]{
		opts:  opts,
		clock: clock,
		fn:    fn,
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

func (d *Func[T]) Call(args T) {
	d.mu.Lock()
	if d.disabled {
		d.mu.Unlock()
		return
	}

	d.lastArgs = args
	now := d.clock.Now()

	if d.opts.Leading && d.timer == nil && d.sinceLastInvoke(now) >= d.opts.Wait {
		d.invokeLocked(now)
		return
	}

	d.stopLocked()

	if d.opts.MaxWait > 0 && d.sinceLastInvoke(now) >= d.opts.MaxWait {
		d.invokeLocked(now)
		return
	}

	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.opts.Wait, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Cancel drops a pending invocation. The last invocation time and the last
// arguments are kept.
func (d *Func[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Flush runs a pending invocation now. It does nothing when idle.
func (d *Func[T]) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.stopLocked()
	d.invokeLocked(d.clock.Now())
}

// Wait blocks until no invocation is running. Pair it with Cancel to make
// sure the target is not called afterwards. It must not be called from the
// target.
func (d *Func[T]) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.running > 0 {
		d.idle.Wait()
	}
}

// Disable turns subsequent calls into no-ops. An already armed invocation
// still runs.
func (d *Func[T]) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disabled = true
}

func (d *Func[T]) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disabled = false
}

func (d *Func[T]) IsDisabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

func (d *Func[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// SetFunc replaces the target. Pending and future invocations use fn.
func (d *Func[T]) SetFunc(fn func(T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
}

func (d *Func[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.timer == nil || d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.invokeLocked(d.clock.Now())
}

// invokeLocked records the invocation time, releases the lock and calls the
// target with the latest arguments. State is already settled when the target
// runs, so a panicking target leaves the scheduler idle.
func (d *Func[T]) invokeLocked(now time.Time) {
	d.lastInvokedAt = now
	d.running++
	fn, args := d.fn, d.lastArgs
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running--
		if d.running == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	if fn != nil {
		fn(args)
	}
}

func (d *Func[T]) stopLocked() {
	if d.timer == nil {
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
}

func (d *Func[T]) sinceLastInvoke(now time.Time) time.Duration {
	if d.lastInvokedAt.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(d.lastInvokedAt)
}
