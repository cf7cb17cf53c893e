package runtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/metric"
)

// sleep is a var so tests can shrink the backoff schedule without
// actually waiting real wall-clock time.
var sleep = time.Sleep

// Receiver is the minimal interface the runtime loops need from a hopper
// receiver, kept separate so tests can drive the loop against a fake.
type Receiver interface {
	Next() (metric.Event, bool, error)
}

// Sink is the common contract every sink implementation satisfies. The
// runtime dispatches decoded events to it and drives its flush cadence;
// the sink's own I/O (HTTP, Kafka, etc.) is out of scope here, per
// spec.md §1's "deliberately out of scope" list.
type Sink interface {
	Deliver(t *metric.Telemetry)
	DeliverLine(l metric.LogLine)
	DeliverRaw(orderBy uint64, encoding string, payload []byte, connectionID *uuid.UUID)
	Flush()
	// FlushInterval returns the sink's requested cadence in base-tick
	// units, or ok=false if the sink flushes on its own schedule and
	// should never be driven by TimerFlush.
	FlushInterval() (interval uint64, ok bool)
	Shutdown()
}

// RunSink runs the common sink consumer loop described by spec.md §4.3:
// poll recv with exponential backoff when empty, dispatch by Event kind,
// call sink.Flush() on tick indexes that are multiples of its requested
// flush_interval, and return once a Shutdown event is observed.
func RunSink(recv Receiver, sink Sink) error {
	attempts := 0
	var lastFlushIdx uint64

	for {
		if attempts > 0 {
			sleep(Backoff(attempts))
		}

		ev, ok, err := recv.Next()
		if err != nil {
			return err
		}
		if !ok {
			attempts++
			continue
		}
		attempts = 0

		switch ev.Kind() {
		case metric.EventTimerFlush:
			idx := ev.TimerFlushIdx()
			if interval, ok := sink.FlushInterval(); ok && interval > 0 &&
				idx%interval == 0 && idx > lastFlushIdx {
				sink.Flush()
				lastFlushIdx = idx
			}
		case metric.EventTelemetry:
			sink.Deliver(ev.Telemetry())
		case metric.EventLog:
			sink.DeliverLine(ev.Log())
		case metric.EventRaw:
			raw := ev.Raw()
			sink.DeliverRaw(raw.OrderBy, raw.Encoding, raw.Bytes, raw.ConnectionID)
		case metric.EventShutdown:
			sink.Shutdown()
			return nil
		}
	}
}
