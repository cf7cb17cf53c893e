package metric

// Kind identifies a Telemetry's aggregation variant. Fixed at construction,
// per spec.md's invariant that a Telemetry's variant never changes.
type Kind int

const (
	// KindSet replaces the bin's value with the most recent sample.
	KindSet Kind = iota
	// KindSum adds samples together.
	KindSum
	// KindSummarize feeds samples into a quantile summary.
	KindSummarize
	// KindHistogram buckets samples into fixed upper-bound bins.
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindSum:
		return "sum"
	case KindSummarize:
		return "summarize"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// value holds exactly one of the four aggregation payloads, selected by
// kind. Only the payload matching kind is ever populated.
type value struct {
	kind      Kind
	setVal    float64
	setValid  bool
	sumVal    float64
	sumCount  uint64
	summarize *quantileSummary
	histogram *histogramValue
}

func newSetValue(v float64) *value {
	return &value{kind: KindSet, setVal: v, setValid: true}
}

func newSumValue(v float64) *value {
	return &value{kind: KindSum, sumVal: v, sumCount: 1}
}

func newSummarizeValue(epsilon float64, v float64) *value {
	q := newQuantileSummary(epsilon)
	q.Insert(v)
	return &value{kind: KindSummarize, summarize: q}
}

func newHistogramValueKind(bounds []float64, v float64) *value {
	h := newHistogramValue(bounds)
	h.Insert(v)
	return &value{kind: KindHistogram, histogram: h}
}

// insert feeds one more sample into the value, per its variant's semantics.
// Used when a second Insert call lands in the same bin as the first.
func (v *value) insert(sample float64) {
	switch v.kind {
	case KindSet:
		v.setVal = sample
		v.setValid = true
	case KindSum:
		v.sumVal += sample
		v.sumCount++
	case KindSummarize:
		v.summarize.Insert(sample)
	case KindHistogram:
		v.histogram.Insert(sample)
	}
}

// mergeInto combines other into v; both must share the same kind. Mismatched
// kinds leave v unchanged, per spec.md's merge invariant.
func (v *value) mergeInto(other *value) {
	if v.kind != other.kind {
		return
	}
	switch v.kind {
	case KindSet:
		if other.setValid {
			v.setVal = other.setVal
			v.setValid = true
		}
	case KindSum:
		v.sumVal += other.sumVal
		v.sumCount += other.sumCount
	case KindSummarize:
		v.summarize.Merge(other.summarize)
	case KindHistogram:
		v.histogram.Merge(other.histogram)
	}
}

func (v *value) clone() *value {
	out := &value{kind: v.kind, setVal: v.setVal, setValid: v.setValid, sumVal: v.sumVal, sumCount: v.sumCount}
	if v.summarize != nil {
		out.summarize = v.summarize.Clone()
	}
	if v.histogram != nil {
		out.histogram = v.histogram.Clone()
	}
	return out
}

// Set returns the current set-value and whether the variant is KindSet.
func (v *value) Set() (float64, bool) {
	if v.kind != KindSet {
		return 0, false
	}
	return v.setVal, v.setValid
}

// Sum returns the accumulated sum and whether the variant is KindSum.
func (v *value) Sum() (float64, bool) {
	if v.kind != KindSum {
		return 0, false
	}
	return v.sumVal, true
}

// Count returns the number of samples folded into this value.
func (v *value) Count() int {
	switch v.kind {
	case KindSet:
		if v.setValid {
			return 1
		}
		return 0
	case KindSum:
		return int(v.sumCount)
	case KindSummarize:
		return v.summarize.Count()
	case KindHistogram:
		return int(v.histogram.Count())
	}
	return 0
}

// Mean returns the arithmetic mean across recorded samples for Summarize
// and Histogram values; a Set yields its current value and a Sum its
// running total.
func (v *value) Mean() (float64, bool) {
	switch v.kind {
	case KindSet:
		return v.setVal, v.setValid
	case KindSum:
		return v.sumVal, true
	case KindSummarize:
		return v.summarize.Mean()
	case KindHistogram:
		if v.histogram.Count() == 0 {
			return 0, false
		}
		return v.histogram.Sum() / float64(v.histogram.Count()), true
	}
	return 0, false
}

// Query answers a quantile query; only meaningful for KindSummarize, a
// neutral (0, false) is returned for any other variant.
func (v *value) Query(q float64) (float64, bool) {
	if v.kind != KindSummarize {
		return 0, false
	}
	val, _, ok := v.summarize.Query(q)
	return val, ok
}

// HistogramCounts returns per-bucket counts; only meaningful for
// KindHistogram.
func (v *value) HistogramCounts() ([]float64, []uint64, bool) {
	if v.kind != KindHistogram {
		return nil, nil, false
	}
	return v.histogram.Bounds(), v.histogram.Counts(), true
}

// resetForPersist clears the value in place following the variant-specific
// carry-forward rule used by Buckets.Reset: Set keeps its last value, Sum
// resets to zero, Summarize and Histogram reset to empty.
func (v *value) resetForPersist() {
	switch v.kind {
	case KindSet:
		// last value carried forward as-is
	case KindSum:
		v.sumVal = 0
		v.sumCount = 0
	case KindSummarize:
		v.summarize = newQuantileSummary(v.summarize.epsilon)
	case KindHistogram:
		v.histogram = newHistogramValue(v.histogram.bounds)
	}
}
