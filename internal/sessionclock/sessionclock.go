// Package sessionclock tracks an expiry timestamp and emits remaining-time
// ticks for countdown display. It only reads the deadline; it never touches
// flow state.
package sessionclock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock counts down toward a fixed deadline, invoking onTick once per
// interval with the time left (floored at zero). After the deadline passes
// the clock emits a final zero tick and stops itself. Expiry is advisory
// only; the server stays authoritative.
type Clock struct {
	expiresAt time.Time
	interval  time.Duration
	onTick    func(remaining time.Duration)

	now      func() time.Time
	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(expiresAt time.Time, onTick func(remaining time.Duration)) *Clock {
	return &Clock{
		expiresAt: expiresAt,
		interval:  time.Second,
		onTick:    onTick,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Remaining returns the time left until expiry, floored at zero.
func (c *Clock) Remaining() time.Duration {
	left := c.expiresAt.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

// Start begins ticking in a background goroutine. It returns immediately.
// Starting twice is a no-op.
func (c *Clock) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

func (c *Clock) run() {
	defer close(c.done)

	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			left := c.Remaining()
			if c.onTick != nil {
				c.onTick(left)
			}
			if left == 0 {
				return
			}
		case <-c.stop:
			return
		}
	}
}

// Stop halts the countdown. Safe to call more than once and safe to call
// on a clock that already expired.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}
