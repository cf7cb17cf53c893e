package runtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueReceiver struct {
	events []metric.Event
	pos    int
}

func (q *queueReceiver) Next() (metric.Event, bool, error) {
	if q.pos >= len(q.events) {
		return metric.Event{}, false, nil
	}
	ev := q.events[q.pos]
	q.pos++
	return ev, true, nil
}

type recordingSink struct {
	delivered     []*metric.Telemetry
	lines         []metric.LogLine
	raws          int
	flushes       int
	flushInterval uint64
	hasInterval   bool
	shutdown      bool
}

func (s *recordingSink) Deliver(t *metric.Telemetry)  { s.delivered = append(s.delivered, t) }
func (s *recordingSink) DeliverLine(l metric.LogLine) { s.lines = append(s.lines, l) }
func (s *recordingSink) DeliverRaw(orderBy uint64, encoding string, payload []byte, connectionID *uuid.UUID) {
	s.raws++
}
func (s *recordingSink) Flush() { s.flushes++ }
func (s *recordingSink) FlushInterval() (uint64, bool) {
	return s.flushInterval, s.hasInterval
}
func (s *recordingSink) Shutdown() { s.shutdown = true }

func init() {
	sleep = func(time.Duration) {}
}

func TestRunSinkDeliversAndFlushesOnInterval(t *testing.T) {
	tel, err := metric.NewBuilder("requests").Sum(1).Build()
	require.NoError(t, err)

	recv := &queueReceiver{events: []metric.Event{
		metric.NewTelemetryEvent(tel),
		metric.NewTimerFlushEvent(1),
		metric.NewTimerFlushEvent(2),
		metric.ShutdownEvent,
	}}
	sink := &recordingSink{flushInterval: 1, hasInterval: true}

	err = RunSink(recv, sink)
	require.NoError(t, err)

	assert.Len(t, sink.delivered, 1)
	assert.Equal(t, 2, sink.flushes)
	assert.True(t, sink.shutdown)
}

func TestRunSinkSkipsFlushWhenNoInterval(t *testing.T) {
	recv := &queueReceiver{events: []metric.Event{
		metric.NewTimerFlushEvent(1),
		metric.ShutdownEvent,
	}}
	sink := &recordingSink{hasInterval: false}

	err := RunSink(recv, sink)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.flushes)
}

func TestRunSinkDeliversLogAndRaw(t *testing.T) {
	recv := &queueReceiver{events: []metric.Event{
		metric.NewLogEvent(metric.NewLogLine("/a.log", "hi", 1)),
		metric.NewRawEvent(metric.RawPayload{OrderBy: 1, Bytes: []byte("x")}),
		metric.ShutdownEvent,
	}}
	sink := &recordingSink{}

	err := RunSink(recv, sink)
	require.NoError(t, err)
	assert.Len(t, sink.lines, 1)
	assert.Equal(t, 1, sink.raws)
}
