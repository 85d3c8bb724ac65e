package engine

import (
	"sync"
	"time"

	"github.com/axterm-radio/netwatch/internal/timeutil"
)

// Coalescer collapses bursts of Schedule calls into a single trailing
// invocation of fn. At most one invocation is ever pending: scheduling again
// cancels the pending one and restarts the delay. Stop abandons any pending
// work and makes further Schedule calls no-ops.
type Coalescer struct {
	clock timeutil.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	cancel  chan struct{}
	stopped bool
}

func NewCoalescer(clock timeutil.Clock, delay time.Duration, fn func()) *Coalescer {
	return &Coalescer{clock: clock, delay: delay, fn: fn}
}

// Schedule arms (or re-arms) the trailing invocation.
func (c *Coalescer) Schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.cancel != nil {
		close(c.cancel)
	}
	cancel := make(chan struct{})
	c.cancel = cancel
	timer := c.clock.NewTimer(c.delay)

	go func() {
		select {
		case <-timer.C():
			c.mu.Lock()
			select {
			case <-cancel:
				// Superseded between firing and acquiring the lock.
				c.mu.Unlock()
				return
			default:
			}
			if c.cancel == cancel {
				c.cancel = nil
			}
			stopped := c.stopped
			c.mu.Unlock()
			if !stopped {
				c.fn()
			}
		case <-cancel:
			timer.Stop()
		}
	}()
}

// Stop cancels any pending invocation. Safe to call at any time, including
// before the first Schedule.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
}
