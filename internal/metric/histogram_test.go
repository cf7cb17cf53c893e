package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogramValueBucketing(t *testing.T) {
	h := newHistogramValue([]float64{1.0, 10.0, 100.0})
	for _, v := range []float64{0.5, 1.0, 5.0, 50.0, 1000.0} {
		h.Insert(v)
	}

	assert.Equal(t, []uint64{2, 1, 1, 1}, h.Counts())
	assert.Equal(t, uint64(5), h.Count())
	assert.Equal(t, 0.5+1.0+5.0+50.0+1000.0, h.Sum())
}

func TestHistogramValueSortsUnsortedBounds(t *testing.T) {
	h := newHistogramValue([]float64{10.0, 1.0})
	assert.Equal(t, []float64{1.0, 10.0}, h.Bounds())
}

func TestHistogramValueMerge(t *testing.T) {
	a := newHistogramValue([]float64{1.0, 10.0})
	a.Insert(0.5)
	b := newHistogramValue([]float64{1.0, 10.0})
	b.Insert(5.0)

	a.Merge(b)

	assert.Equal(t, []uint64{1, 1, 0}, a.Counts())
	assert.Equal(t, uint64(2), a.Count())
}

func TestHistogramValueMergeIgnoresMismatchedShape(t *testing.T) {
	a := newHistogramValue([]float64{1.0, 10.0})
	a.Insert(0.5)
	b := newHistogramValue([]float64{1.0})

	a.Merge(b)

	assert.Equal(t, uint64(1), a.Count())
}
