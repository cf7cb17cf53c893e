package metric

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripsSum(t *testing.T) {
	tags := NewTagMap(map[string]string{"host": "a", "env": "prod"})
	tel, err := NewBuilder("requests").Tags(tags).Sum(3.5).Timestamp(100).Persist(true).Build()
	require.NoError(t, err)

	b, err := Encode(NewTelemetryEvent(tel))
	require.NoError(t, err)

	ev, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, EventTelemetry, ev.Kind())

	got := ev.Telemetry()
	assert.Equal(t, tel.Name(), got.Name())
	assert.Equal(t, tel.Hash(), got.Hash())
	assert.Equal(t, tel.Timestamp(), got.Timestamp())
	assert.Equal(t, tel.Persist(), got.Persist())
	gotSum, _ := got.Sum()
	assert.Equal(t, 3.5, gotSum)
}

func TestCodecRoundTripsHistogram(t *testing.T) {
	tel, err := NewBuilder("latency").Histogram([]float64{1.0, 10.0, 100.0}, 5.0).Build()
	require.NoError(t, err)
	tel.Insert(0.5)
	tel.Insert(1000.0)

	b, err := Encode(NewTelemetryEvent(tel))
	require.NoError(t, err)
	ev, err := Decode(b)
	require.NoError(t, err)

	bounds, counts, ok := ev.Telemetry().HistogramCounts()
	require.True(t, ok)
	assert.Equal(t, []float64{1.0, 10.0, 100.0}, bounds)
	assert.Equal(t, []uint64{1, 1, 0, 1}, counts)
}

func TestCodecRoundTripsSummarize(t *testing.T) {
	tel, err := NewBuilder("latency").Summarize(0.01, 1.0).Build()
	require.NoError(t, err)
	for _, v := range []float64{2, 3, 4, 5} {
		tel.Insert(v)
	}

	b, err := Encode(NewTelemetryEvent(tel))
	require.NoError(t, err)
	ev, err := Decode(b)
	require.NoError(t, err)

	assert.Equal(t, tel.Count(), ev.Telemetry().Count())
	wantMean, _ := tel.Mean()
	gotMean, _ := ev.Telemetry().Mean()
	assert.Equal(t, wantMean, gotMean)
}

func TestCodecRoundTripsLog(t *testing.T) {
	l := NewLogLine("/var/log/app.log", "line one", 10).WithField("level", "info")
	b, err := Encode(NewLogEvent(l))
	require.NoError(t, err)
	ev, err := Decode(b)
	require.NoError(t, err)

	got := ev.Log()
	assert.Equal(t, "/var/log/app.log", got.Path())
	assert.Equal(t, "line one", got.Value())
	v, ok := got.Fields().Get("level")
	assert.True(t, ok)
	assert.Equal(t, "info", v)
}

func TestCodecRoundTripsRawWithConnectionID(t *testing.T) {
	id := uuid.New()
	p := RawPayload{OrderBy: 9, Encoding: "native", Bytes: []byte{9, 8, 7}, ConnectionID: &id}
	b, err := Encode(NewRawEvent(p))
	require.NoError(t, err)
	ev, err := Decode(b)
	require.NoError(t, err)

	got := ev.Raw()
	require.NotNil(t, got.ConnectionID)
	assert.Equal(t, id, *got.ConnectionID)
	assert.Equal(t, []byte{9, 8, 7}, got.Bytes)
}

func TestCodecRoundTripsShutdownAndTimerFlush(t *testing.T) {
	b, err := Encode(ShutdownEvent)
	require.NoError(t, err)
	ev, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, EventShutdown, ev.Kind())

	b, err = Encode(NewTimerFlushEvent(7))
	require.NoError(t, err)
	ev, err = Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ev.TimerFlushIdx())
}
