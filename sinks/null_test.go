package sinks

import (
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullDiscardsEverything(t *testing.T) {
	n := NewNull()

	tel, err := metric.NewBuilder("req.count").Sum(1).Build()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n.Deliver(tel)
		n.DeliverLine(metric.NewLogLine("path", "value", 0))
		n.DeliverRaw(0, "avro", []byte{1, 2, 3}, nil)
		n.Flush()
		n.Shutdown()
	})

	_, ok := n.FlushInterval()
	assert.False(t, ok)
}
