package buckets

import (
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumTelem(t *testing.T, name string, ts int64, v float64, persist bool) *metric.Telemetry {
	t.Helper()
	tel, err := metric.NewBuilder(name).Sum(v).Timestamp(ts).Persist(persist).Build()
	require.NoError(t, err)
	return tel
}

func TestAddMergesSameBin(t *testing.T) {
	b := New(10)
	b.Add(sumTelem(t, "requests", 101, 1, false))
	b.Add(sumTelem(t, "requests", 105, 2, false))

	series := b.Counters()
	require.Len(t, series, 1)
	for _, s := range series {
		require.Len(t, s, 1)
		assert.Equal(t, int64(100), s[0].BinStart)
		v, _ := s[0].Telemetry.Sum()
		assert.Equal(t, 3.0, v)
	}
}

func TestAddInsertsSeparateBinsInOrder(t *testing.T) {
	b := New(10)
	b.Add(sumTelem(t, "requests", 125, 1, false))
	b.Add(sumTelem(t, "requests", 101, 1, false))
	b.Add(sumTelem(t, "requests", 115, 1, false))

	series := b.Counters()
	require.Len(t, series, 1)
	for _, s := range series {
		require.Len(t, s, 3)
		assert.Equal(t, []int64{100, 110, 120}, []int64{s[0].BinStart, s[1].BinStart, s[2].BinStart})
	}
}

func TestSampleCountSumInvariant(t *testing.T) {
	b := New(10)
	inserted := 0.0
	for _, ts := range []int64{100, 103, 107, 120, 121, 130} {
		b.Add(sumTelem(t, "requests", ts, 1, false))
		inserted++
	}

	var totalCount int
	for _, series := range b.Counters() {
		for _, s := range series {
			totalCount += s.Telemetry.Count()
		}
	}
	assert.Equal(t, int(inserted), totalCount)
}

func TestResetDropsNonPersistentEntries(t *testing.T) {
	b := New(10)
	b.Add(sumTelem(t, "requests", 100, 5, false))

	b.Reset(110)

	assert.Empty(t, b.Counters())
}

func TestResetCarriesForwardPersistentSetEntries(t *testing.T) {
	b := New(10)
	tel, err := metric.NewBuilder("gauge").Set(42).Timestamp(100).Persist(true).Build()
	require.NoError(t, err)
	b.Add(tel)

	b.Reset(110)

	series := b.Gauges()
	require.Len(t, series, 1)
	for _, s := range series {
		require.Len(t, s, 1)
		assert.Equal(t, int64(110), s[0].BinStart)
		v, ok := s[0].Telemetry.Set()
		assert.True(t, ok)
		assert.Equal(t, 42.0, v)
	}
}

func TestResetZeroesPersistentSumEntries(t *testing.T) {
	b := New(10)
	b.Add(sumTelem(t, "requests", 100, 5, true))

	b.Reset(110)

	series := b.Counters()
	for _, s := range series {
		v, _ := s[0].Telemetry.Sum()
		assert.Equal(t, 0.0, v)
	}
}

func TestBinStartFloorsToWidth(t *testing.T) {
	b := New(60)
	assert.Equal(t, int64(60), b.BinStart(119))
	assert.Equal(t, int64(120), b.BinStart(120))
}
