package feed

import (
	"sync"
	"time"
)

// Coalescer collapses bursts of triggers into one call of fn with the
// latest argument, once window has passed without a new trigger.
type Coalescer[T any] struct {
	window time.Duration
	fn     func(T)

	mu      sync.Mutex
	timer   *time.Timer
	latest  T
	gen     uint64
	pending bool
	stopped bool
}

func NewCoalescer[T any](window time.Duration, fn func(T)) *Coalescer[T] {
	return &Coalescer[T]{window: window, fn: fn}
}

// Trigger records v and restarts the window.
func (c *Coalescer[T]) Trigger(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.latest = v
	c.pending = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.gen
	c.timer = time.AfterFunc(c.window, func() { c.fire(gen) })
}

func (c *Coalescer[T]) fire(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen || !c.pending {
		c.mu.Unlock()
		return
	}
	v := c.latest
	c.pending = false
	c.timer = nil
	c.mu.Unlock()

	c.fn(v)
}

func (c *Coalescer[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Stop drops any pending call. Later triggers are ignored.
func (c *Coalescer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
