package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTelemetryRoundTrip(t *testing.T) {
	tel, err := NewBuilder("requests").Sum(1).Build()
	require.NoError(t, err)

	ev := NewTelemetryEvent(tel)
	assert.Equal(t, EventTelemetry, ev.Kind())
	assert.Same(t, tel, ev.Telemetry())
	assert.Nil(t, ev.Raw())
	assert.Equal(t, LogLine{}, ev.Log())
}

func TestEventLogRoundTrip(t *testing.T) {
	l := NewLogLine("/var/log/app.log", "boot", 10)
	ev := NewLogEvent(l)
	assert.Equal(t, EventLog, ev.Kind())
	assert.Equal(t, "/var/log/app.log", ev.Log().Path())
	assert.Nil(t, ev.Telemetry())
}

func TestEventRawRoundTrip(t *testing.T) {
	p := RawPayload{OrderBy: 7, Encoding: "avro", Bytes: []byte{1, 2, 3}}
	ev := NewRawEvent(p)
	assert.Equal(t, EventRaw, ev.Kind())
	require.NotNil(t, ev.Raw())
	assert.Equal(t, uint64(7), ev.Raw().OrderBy)
}

func TestShutdownEventKind(t *testing.T) {
	assert.Equal(t, EventShutdown, ShutdownEvent.Kind())
}

func TestTimerFlushEvent(t *testing.T) {
	ev := NewTimerFlushEvent(42)
	assert.Equal(t, EventTimerFlush, ev.Kind())
	assert.Equal(t, uint64(42), ev.TimerFlushIdx())
}
