// Package clock implements the time service (C11): a monotonically
// refreshed cache of wall-clock epoch seconds, updated by a background
// ticker so the hot insertion path avoids a syscall per sample.
package clock

import (
	"time"

	"go.uber.org/atomic"
)

// Clock serves a cached epoch-seconds reading, refreshed on an interval.
type Clock struct {
	now    atomic.Int64
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// New starts a Clock whose cached reading refreshes every interval. Callers
// must call Stop when finished. An interval of 500ms matches spec.md §4.4.
func New(interval time.Duration) *Clock {
	c := &Clock{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.now.Store(time.Now().Unix())
	go c.run()
	return c
}

func (c *Clock) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ticker.C:
			c.now.Store(time.Now().Unix())
		case <-c.stop:
			return
		}
	}
}

// Now returns the most recently cached epoch-seconds reading.
func (c *Clock) Now() int64 { return c.now.Load() }

// Stop halts the background ticker and waits for it to exit.
func (c *Clock) Stop() {
	c.ticker.Stop()
	close(c.stop)
	<-c.done
}

// Default is the process-wide clock, started at package init with
// the spec's 500ms refresh interval.
var Default = New(500 * time.Millisecond)
