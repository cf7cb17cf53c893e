package metric

import "github.com/google/uuid"

// EventKind discriminates the Event tagged union.
type EventKind int

const (
	EventTelemetry EventKind = iota
	EventLog
	EventRaw
	EventTimerFlush
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventTelemetry:
		return "telemetry"
	case EventLog:
		return "log"
	case EventRaw:
		return "raw"
	case EventTimerFlush:
		return "timer_flush"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// RawPayload is an opaque, length-prefixed-framed payload (e.g. Avro) with
// an ordering key for partitioned sinks and an optional connection id used
// to signal a synchronous ack back to the originating wire connection.
type RawPayload struct {
	OrderBy      uint64
	Encoding     string
	Bytes        []byte
	Metadata     TagMap
	ConnectionID *uuid.UUID
}

// Event is the unit crossing every hopper channel: a tagged union of
// Telemetry, Log, Raw, TimerFlush and Shutdown. Telemetry and Log payloads
// are carried by pointer, so fan-out to N downstream channels allocates
// once, per spec.md §9 — Go's garbage collector gives this to us for free,
// no explicit refcount is needed the way the original's Arc<T> requires.
type Event struct {
	kind      EventKind
	telemetry *Telemetry
	log       *LogLine
	raw       *RawPayload
	timerIdx  uint64
}

// NewTelemetryEvent wraps a Telemetry as an Event.
func NewTelemetryEvent(t *Telemetry) Event {
	return Event{kind: EventTelemetry, telemetry: t}
}

// NewLogEvent wraps a LogLine as an Event.
func NewLogEvent(l LogLine) Event {
	return Event{kind: EventLog, log: &l}
}

// NewRawEvent wraps an opaque payload as an Event.
func NewRawEvent(p RawPayload) Event {
	return Event{kind: EventRaw, raw: &p}
}

// NewTimerFlushEvent builds a TimerFlush tick with the given index.
func NewTimerFlushEvent(idx uint64) Event {
	return Event{kind: EventTimerFlush, timerIdx: idx}
}

// ShutdownEvent is the cooperative termination signal.
var ShutdownEvent = Event{kind: EventShutdown}

func (e Event) Kind() EventKind { return e.kind }

// Telemetry returns the wrapped Telemetry, or nil if this Event is not
// EventTelemetry.
func (e Event) Telemetry() *Telemetry {
	if e.kind != EventTelemetry {
		return nil
	}
	return e.telemetry
}

// Log returns the wrapped LogLine, or the zero value if this Event is not
// EventLog — callers should check Kind() first.
func (e Event) Log() LogLine {
	if e.log == nil {
		return LogLine{}
	}
	return *e.log
}

// Raw returns the wrapped payload, or nil if this Event is not EventRaw.
func (e Event) Raw() *RawPayload {
	if e.kind != EventRaw {
		return nil
	}
	return e.raw
}

// TimerFlushIdx returns the tick index, meaningless outside EventTimerFlush.
func (e Event) TimerFlushIdx() uint64 { return e.timerIdx }
