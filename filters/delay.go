package filters

import (
	"sync"
	"time"

	"github.com/hopperd/hopper/internal/metric"
)

// Delay holds every non-control event for a fixed duration before
// emitting it, used to let downstream sinks that depend on wall-clock
// ordering (e.g. a sink correlating against another slower-arriving
// stream) tolerate jitter. Grounded on
// original_source/src/filter/delay_filter.rs.
//
// TimerFlush and Shutdown pass through immediately — holding a control
// signal would desynchronize every other stage's flush cadence.
type Delay struct {
	delay time.Duration

	mu      sync.Mutex
	pending []delayedEvent
}

type delayedEvent struct {
	readyAt time.Time
	event   metric.Event
}

// NewDelay returns a Delay filter holding events for d before emitting.
func NewDelay(d time.Duration) *Delay {
	return &Delay{delay: d}
}

func (f *Delay) Process(ev metric.Event, out *[]metric.Event) {
	switch ev.Kind() {
	case metric.EventTimerFlush:
		f.mu.Lock()
		ready := f.drainReadyLocked()
		f.mu.Unlock()
		*out = append(*out, ready...)
		*out = append(*out, ev)
		return
	case metric.EventShutdown:
		*out = append(*out, f.Flush()...)
		*out = append(*out, ev)
		return
	}

	f.mu.Lock()
	f.pending = append(f.pending, delayedEvent{readyAt: time.Now().Add(f.delay), event: ev})
	ready := f.drainReadyLocked()
	f.mu.Unlock()

	*out = append(*out, ready...)
}

// drainReadyLocked removes and returns every pending event whose delay
// has elapsed. Callers must hold f.mu.
func (f *Delay) drainReadyLocked() []metric.Event {
	now := time.Now()
	var ready []metric.Event
	remaining := f.pending[:0]
	for _, p := range f.pending {
		if !now.Before(p.readyAt) {
			ready = append(ready, p.event)
		} else {
			remaining = append(remaining, p)
		}
	}
	f.pending = remaining
	return ready
}

// Flush releases every still-pending event regardless of its remaining
// delay, called by Shutdown so nothing held by the filter is lost on
// graceful termination.
func (f *Delay) Flush() []metric.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]metric.Event, len(f.pending))
	for i, p := range f.pending {
		out[i] = p.event
	}
	f.pending = nil
	return out
}

func (f *Delay) Shutdown() {}
