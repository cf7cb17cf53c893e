package filters

import (
	"sync"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/valve"
)

// FlushBoundary buffers every telemetry event it sees until a
// TimerFlush arrives, at which point it emits the entire buffer in
// arrival order followed by the TimerFlush itself. Log and Raw events
// pass straight through — only Telemetry accumulates.
//
// Buffering too long between flushes means unbounded memory, so once
// the buffer holds more than tolerance events it closes its own Valve
// to signal upstream stages to shed load; the valve reopens once a
// flush drains the buffer back under tolerance. Grounded on
// original_source/src/filter/flush_boundary_filter.rs and spec.md §8
// scenario 5.
type FlushBoundary struct {
	tolerance int
	v         *valve.Valve

	mu      sync.Mutex
	pending []*metric.Telemetry
}

// NewFlushBoundary returns a FlushBoundary that closes its Valve once
// more than tolerance telemetries have accumulated since the last flush.
func NewFlushBoundary(tolerance int) *FlushBoundary {
	return &FlushBoundary{tolerance: tolerance, v: valve.New()}
}

// Valve exposes the back-pressure signal for wiring into upstream
// stages' RunFilter/RunSink calls.
func (f *FlushBoundary) Valve() *valve.Valve { return f.v }

func (f *FlushBoundary) Process(ev metric.Event, out *[]metric.Event) {
	switch ev.Kind() {
	case metric.EventTelemetry:
		f.mu.Lock()
		f.pending = append(f.pending, ev.Telemetry())
		if len(f.pending) > f.tolerance {
			f.v.Set(valve.Closed)
		}
		f.mu.Unlock()

	case metric.EventTimerFlush:
		f.mu.Lock()
		for _, t := range f.pending {
			*out = append(*out, metric.NewTelemetryEvent(t))
		}
		f.pending = nil
		f.v.Set(valve.Open)
		f.mu.Unlock()
		*out = append(*out, ev)

	case metric.EventShutdown:
		f.mu.Lock()
		for _, t := range f.pending {
			*out = append(*out, metric.NewTelemetryEvent(t))
		}
		f.pending = nil
		f.mu.Unlock()
		*out = append(*out, ev)

	default:
		*out = append(*out, ev)
	}
}

func (f *FlushBoundary) Shutdown() {}
