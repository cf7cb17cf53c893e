package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/require"
)

func writeFrame(t *testing.T, f *os.File, ev metric.Event) {
	t.Helper()
	payload, err := metric.Encode(ev)
	require.NoError(t, err)
	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	_, err = f.Write(lenBuf[:])
	require.NoError(t, err)
	_, err = f.Write(payload)
	require.NoError(t, err)
}

func TestSegmentFilesSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10", "2", "1", "not-a-segment.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	names, err := segmentFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "10"}, names)
}

func TestStatSegmentCountsFramesByKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")
	f, err := os.Create(path)
	require.NoError(t, err)

	tel, err := metric.NewBuilder("cpu.load").Set(1.5).Build()
	require.NoError(t, err)
	writeFrame(t, f, metric.NewTelemetryEvent(tel))
	writeFrame(t, f, metric.NewLogEvent(metric.NewLogLine("/var/log/app.log", "boot", 0)))
	writeFrame(t, f, metric.NewTimerFlushEvent(1))
	require.NoError(t, f.Close())

	st, err := statSegment(path)
	require.NoError(t, err)
	require.Equal(t, 3, st.frames)
	require.Equal(t, 1, st.byKind["telemetry"])
	require.Equal(t, 1, st.byKind["log"])
	require.Equal(t, 1, st.byKind["timer_flush"])
	require.False(t, st.corrupt)
}

func TestStatSegmentFlagsCorruptTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 99, 1, 2, 3}, 0o644))

	st, err := statSegment(path)
	require.NoError(t, err)
	require.True(t, st.corrupt)
	require.Equal(t, 0, st.frames)
}

func TestFrameRowFormatsTelemetry(t *testing.T) {
	tel, err := metric.NewBuilder("cpu.load").Set(2.25).Build()
	require.NoError(t, err)
	row := frameRow("0", metric.NewTelemetryEvent(tel))
	require.Equal(t, []string{"0", "telemetry", "cpu.load", "2.25"}, row)
}
