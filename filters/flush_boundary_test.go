package filters

import (
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/valve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushBoundaryBuffersUntilTimerFlush(t *testing.T) {
	f := NewFlushBoundary(1000)
	var out []metric.Event

	f.Process(metric.NewTelemetryEvent(mustTelemetry(t, "a")), &out)
	f.Process(metric.NewTelemetryEvent(mustTelemetry(t, "b")), &out)
	assert.Empty(t, out, "telemetry should not be emitted before a flush")

	f.Process(metric.NewTimerFlushEvent(1), &out)
	require.Len(t, out, 3)
	assert.Equal(t, metric.EventTelemetry, out[0].Kind())
	assert.Equal(t, metric.EventTelemetry, out[1].Kind())
	assert.Equal(t, metric.EventTimerFlush, out[2].Kind())
}

func TestFlushBoundaryLogAndRawPassThrough(t *testing.T) {
	f := NewFlushBoundary(1000)
	var out []metric.Event

	f.Process(metric.NewLogEvent(metric.LogLine{}), &out)
	require.Len(t, out, 1)
	assert.Equal(t, metric.EventLog, out[0].Kind())

	f.Process(metric.NewRawEvent(metric.RawPayload{Encoding: "avro"}), &out)
	require.Len(t, out, 2)
	assert.Equal(t, metric.EventRaw, out[1].Kind())
}

func TestFlushBoundaryClosesValveOverTolerance(t *testing.T) {
	f := NewFlushBoundary(2)
	var out []metric.Event

	for i := 0; i < 1001; i++ {
		f.Process(metric.NewTelemetryEvent(mustTelemetry(t, "a")), &out)
	}

	assert.Equal(t, valve.Closed, f.Valve().State(),
		"valve should be closed once pending telemetry exceeds tolerance, at or before the 1001st event")
}

func TestFlushBoundaryReopensValveAfterFlush(t *testing.T) {
	f := NewFlushBoundary(2)
	var out []metric.Event

	for i := 0; i < 5; i++ {
		f.Process(metric.NewTelemetryEvent(mustTelemetry(t, "a")), &out)
	}
	require.Equal(t, valve.Closed, f.Valve().State())

	out = nil
	f.Process(metric.NewTimerFlushEvent(1), &out)
	assert.Equal(t, valve.Open, f.Valve().State())
	assert.Len(t, out, 6)
}

func TestFlushBoundaryShutdownDrainsPending(t *testing.T) {
	f := NewFlushBoundary(1000)
	var out []metric.Event
	f.Process(metric.NewTelemetryEvent(mustTelemetry(t, "a")), &out)

	out = nil
	f.Process(metric.ShutdownEvent, &out)
	require.Len(t, out, 2)
	assert.Equal(t, metric.EventTelemetry, out[0].Kind())
	assert.Equal(t, metric.EventShutdown, out[1].Kind())
}
