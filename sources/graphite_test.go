package sources

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGraphiteLine(t *testing.T) {
	tel, err := parseGraphiteLine("app.requests 17 1700000000")
	require.NoError(t, err)
	assert.Equal(t, "app.requests", tel.Name())
	v, ok := tel.Set()
	require.True(t, ok)
	assert.Equal(t, 17.0, v)
	assert.Equal(t, int64(1700000000), tel.Timestamp())
}

func TestParseGraphiteLineRejectsWrongFieldCount(t *testing.T) {
	_, err := parseGraphiteLine("app.requests 17")
	assert.Error(t, err)
}

func TestGraphiteEndToEndTCP(t *testing.T) {
	fwd := &recordingSender{}
	src, err := NewGraphite("127.0.0.1:0", []Sender{fwd})
	require.NoError(t, err)
	defer src.Close()

	go func() { _ = src.Run() }()

	conn, err := net.Dial("tcp", src.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("app.requests 17 1700000000\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fwd.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}
