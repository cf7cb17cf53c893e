package selftelemetry

import (
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopFIFO(t *testing.T) {
	q := New()
	a, err := metric.NewBuilder("a").Sum(1).Build()
	require.NoError(t, err)
	b, err := metric.NewBuilder("b").Sum(1).Build()
	require.NoError(t, err)

	q.Push(a)
	q.Push(b)

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", first.Name())

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", second.Name())

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestDrainIntoEmptiesQueue(t *testing.T) {
	q := New()
	for _, n := range []string{"a", "b", "c"} {
		tel, err := metric.NewBuilder(n).Sum(1).Build()
		require.NoError(t, err)
		q.Push(tel)
	}

	var names []string
	q.DrainInto(func(t *metric.Telemetry) { names = append(names, t.Name()) })

	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, 0, q.Len())
}

func TestCounterPushesPersistentSum(t *testing.T) {
	q := New()
	prevDefault := Default
	Default = q
	defer func() { Default = prevDefault }()

	Counter("cernan.sources.statsd.bad_packet", metric.TagMap{}, 100)

	tel, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "cernan.sources.statsd.bad_packet", tel.Name())
	assert.True(t, tel.Persist())
}
