package app

import (
	"net"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

// TestAppRunsTopologyAndShutsDownCleanly drives a small
// source -> filter -> sink topology end to end: a graphite source
// accepts a line over TCP, the id filter passes it through unchanged,
// and a null sink consumes it. The test only asserts the whole pipeline
// starts, accepts traffic, and stops within its shutdown timeout —
// assertions on per-sink delivered content live in the sinks package's
// own tests.
func TestAppRunsTopologyAndShutsDownCleanly(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{
		Channels: ChannelConfig{
			Directory:    dir,
			MaxBytes:     1 << 20,
			TickInterval: 20 * time.Millisecond,
		},
		Server: ServerConfig{HTTPListenAddr: "127.0.0.1:0"},
		Sources: []SourceConfig{
			{Name: "graphite-in", Type: "graphite", Addr: "127.0.0.1:0", Forwards: []string{"scrub"}},
		},
		Filters: []FilterConfig{
			{Name: "scrub", Type: "id", Forwards: []string{"out"}},
		},
		Sinks: []SinkConfig{
			{Name: "out", Type: "null"},
		},
	}

	a, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run())

	// give the goroutines a moment to start serving
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, a.Shutdown(5*time.Second))
}

func TestAppRejectsForwardToUnknownStage(t *testing.T) {
	cfg := Config{
		Sources: []SourceConfig{{Name: "in", Type: "graphite", Addr: "127.0.0.1:0", Forwards: []string{"nope"}}},
	}
	_, err := New(cfg, log.NewNopLogger())
	require.Error(t, err)
}

func TestAppHTTPServerExposesHealthz(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Channels: ChannelConfig{
			Directory:    dir,
			MaxBytes:     1 << 20,
			TickInterval: 20 * time.Millisecond,
		},
		Server: ServerConfig{HTTPListenAddr: "127.0.0.1:18099"},
		Sinks:  []SinkConfig{{Name: "out", Type: "null"}},
	}
	a, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run())
	defer a.Shutdown(5 * time.Second)

	var conn net.Conn
	for i := 0; i < 20; i++ {
		conn, err = net.Dial("tcp", "127.0.0.1:18099")
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err, "expected http server to start listening")
}
