package sinks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyForFormatsDecimal(t *testing.T) {
	assert.Equal(t, "42", string(keyFor(42)))
	assert.Equal(t, "0", string(keyFor(0)))
}

func TestNewKafkaConstructsWithoutDialing(t *testing.T) {
	// kgo.NewClient only stores seed broker config; it never blocks
	// dialing an unreachable address until a produce/fetch is attempted.
	k, err := NewKafka([]string{"127.0.0.1:1"}, "hopperd.events")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		k.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("Shutdown did not return with no pending records")
	}
}

func TestKafkaFlushIntervalIsUnset(t *testing.T) {
	k, err := NewKafka([]string{"127.0.0.1:1"}, "hopperd.events")
	require.NoError(t, err)
	defer k.client.Close()

	_, ok := k.FlushInterval()
	assert.False(t, ok)
}
