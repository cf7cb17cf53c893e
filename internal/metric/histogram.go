package metric

import "sort"

// histogramValue buckets samples into user-supplied upper bounds, sorted
// ascending, plus an implicit +Inf overflow bucket — the fixed-bin variant
// described in spec.md's Histogram aggregation, modeled the way Prometheus
// and StatsD histograms bucket samples.
type histogramValue struct {
	bounds []float64 // sorted ascending, exclusive of the implicit +Inf bucket
	counts []uint64  // len(counts) == len(bounds)+1, counts[len(bounds)] is the overflow bucket
	sum    float64
	count  uint64
}

func newHistogramValue(bounds []float64) *histogramValue {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)
	return &histogramValue{
		bounds: b,
		counts: make([]uint64, len(b)+1),
	}
}

func (h *histogramValue) Insert(v float64) {
	// SearchFloat64s returns the first index whose bound is >= v; bounds
	// are inclusive upper edges, so this lands v in the right bucket,
	// falling through to the +Inf overflow bucket when v exceeds them all.
	i := sort.SearchFloat64s(h.bounds, v)
	h.counts[i]++
	h.sum += v
	h.count++
}

// Counts returns the per-bucket counts, last element is the +Inf overflow.
func (h *histogramValue) Counts() []uint64 {
	out := make([]uint64, len(h.counts))
	copy(out, h.counts)
	return out
}

func (h *histogramValue) Bounds() []float64 {
	out := make([]float64, len(h.bounds))
	copy(out, h.bounds)
	return out
}

func (h *histogramValue) Sum() float64  { return h.sum }
func (h *histogramValue) Count() uint64 { return h.count }

func (h *histogramValue) Merge(other *histogramValue) {
	if other == nil || len(other.counts) != len(h.counts) {
		return
	}
	for i := range h.counts {
		h.counts[i] += other.counts[i]
	}
	h.sum += other.sum
	h.count += other.count
}

func (h *histogramValue) Clone() *histogramValue {
	out := &histogramValue{
		bounds: make([]float64, len(h.bounds)),
		counts: make([]uint64, len(h.counts)),
		sum:    h.sum,
		count:  h.count,
	}
	copy(out.bounds, h.bounds)
	copy(out.counts, h.counts)
	return out
}
