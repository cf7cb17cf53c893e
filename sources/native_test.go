package sources

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFrame assembles one complete on-the-wire frame: the 4-byte length
// prefix followed by version/control/id/order_by and payload (no
// metadata block — version 1).
func buildFrame(id, orderBy uint64, control uint32, payload []byte) []byte {
	body := make([]byte, 0, 24+len(payload))
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], 1) // version
	body = append(body, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], control)
	body = append(body, u32[:]...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], id)
	body = append(body, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], orderBy)
	body = append(body, u64[:]...)
	body = append(body, payload...)

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	return append(lenPrefix[:], body...)
}

func TestNativeDecodesEncodedEventFrame(t *testing.T) {
	fwd := &recordingSender{}
	src, err := NewNative("127.0.0.1:0", []Sender{fwd}, nil)
	require.NoError(t, err)
	defer src.Close()
	go func() { _ = src.Run() }()

	tel, err := metric.NewBuilder("req.count").Sum(5).Build()
	require.NoError(t, err)
	payload, err := metric.Encode(metric.NewTelemetryEvent(tel))
	require.NoError(t, err)

	conn, err := net.Dial("tcp", src.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(buildFrame(1, 0, 0, payload))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fwd.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	got := fwd.snapshot()[0]
	require.Equal(t, metric.EventTelemetry, got.Kind())
	v, ok := got.Telemetry().Sum()
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestNativeWrapsUndecodableFrameAsRaw(t *testing.T) {
	fwd := &recordingSender{}
	src, err := NewNative("127.0.0.1:0", []Sender{fwd}, nil)
	require.NoError(t, err)
	defer src.Close()
	go func() { _ = src.Run() }()

	conn, err := net.Dial("tcp", src.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(buildFrame(1, 7, 0, []byte("not an event")))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fwd.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	got := fwd.snapshot()[0]
	require.Equal(t, metric.EventRaw, got.Kind())
	assert.Equal(t, uint64(7), got.Raw().OrderBy)
	assert.Equal(t, "native", got.Raw().Encoding)
}

func TestNativeSyncFrameWritesAckAfterForward(t *testing.T) {
	fwd := &recordingSender{}
	src, err := NewNative("127.0.0.1:0", []Sender{fwd}, nil)
	require.NoError(t, err)
	defer src.Close()
	go func() { _ = src.Run() }()

	tel, err := metric.NewBuilder("req.count").Sum(1).Build()
	require.NoError(t, err)
	payload, err := metric.Encode(metric.NewTelemetryEvent(tel))
	require.NoError(t, err)

	conn, err := net.Dial("tcp", src.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(buildFrame(7, 0, wire.ControlSync, payload))
	require.NoError(t, err)

	ack := make([]byte, 8)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = readFull(conn, ack)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), binary.BigEndian.Uint64(ack))
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
