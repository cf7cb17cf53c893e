package routing

import (
	"context"
	"time"

	"github.com/hopperd/hopper/internal/metric"
)

// Sender is the minimal interface the timer stage needs from a hopper
// sender — defined here instead of importing internal/hopper directly so
// routing stays a leaf package wiring-wise, and so tests can fan a timer
// into a fake channel.
type Sender interface {
	Send(metric.Event) error
}

// Timer is the dedicated stage (C6/C11) that holds every channel's
// sender and fans a monotonically increasing TimerFlush(idx) event into
// each of them at a fixed interval.
type Timer struct {
	interval time.Duration
	senders  []Sender
	idx      uint64
}

// NewTimer returns a Timer that will tick every interval once Run is
// called, fanning out to every given sender.
func NewTimer(interval time.Duration, senders ...Sender) *Timer {
	return &Timer{interval: interval, senders: senders}
}

// Run blocks, ticking every interval and sending TimerFlush(idx) to every
// registered sender, until ctx is cancelled.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.idx++
			ev := metric.NewTimerFlushEvent(t.idx)
			for _, s := range t.senders {
				_ = s.Send(ev)
			}
		}
	}
}

// Idx returns the most recently emitted tick index, for tests.
func (t *Timer) Idx() uint64 { return t.idx }
