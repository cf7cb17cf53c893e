package metric

import (
	"math"
	"sort"
)

// quantileSummary is a CKMS-style streaming epsilon-approximate quantile
// estimator (Cormode/Korn/Muthukrishnan/Srivastava), grounded on the
// "quantiles" crate used by the original cernan's metric::value. It trades
// exactness for a bounded number of retained samples: after Insert, any
// query for quantile q is off by at most epsilon in rank.
//
// This is one of the few pieces of hopperd built on nothing but the
// standard library: no CKMS (or similar summary-structure) package appears
// anywhere in the example corpus, see DESIGN.md.
type quantileSummary struct {
	epsilon float64
	samples []ckmsSample
	n       int
	sum     float64
	last    float64
}

type ckmsSample struct {
	value     float64
	gap       int // g: difference in rank lower bound from the previous sample
	delta     int // delta: width of the uncertainty band
}

func newQuantileSummary(epsilon float64) *quantileSummary {
	if epsilon <= 0 || epsilon >= 1 {
		epsilon = 0.001
	}
	return &quantileSummary{epsilon: epsilon}
}

func (q *quantileSummary) Insert(v float64) {
	q.n++
	q.sum += v
	q.last = v

	i := sort.Search(len(q.samples), func(i int) bool { return q.samples[i].value >= v })

	var delta int
	if i == 0 || i == len(q.samples) {
		delta = 0
	} else {
		delta = int(math.Floor(2*q.epsilon*float64(q.n))) - 1
		if delta < 0 {
			delta = 0
		}
	}

	sample := ckmsSample{value: v, gap: 1, delta: delta}
	q.samples = append(q.samples, ckmsSample{})
	copy(q.samples[i+1:], q.samples[i:])
	q.samples[i] = sample

	if q.n%int(1/(2*q.epsilon)+1) == 0 {
		q.compress()
	}
}

// compress merges adjacent samples whose combined band still satisfies the
// epsilon bound, bounding memory to O((1/epsilon) * log(epsilon*n)).
func (q *quantileSummary) compress() {
	if len(q.samples) < 3 {
		return
	}
	threshold := func(rank int) int {
		return int(math.Floor(2 * q.epsilon * float64(rank)))
	}
	out := make([]ckmsSample, 0, len(q.samples))
	out = append(out, q.samples[0])
	rank := q.samples[0].gap
	for i := 1; i < len(q.samples)-1; i++ {
		cur := q.samples[i]
		rank += cur.gap
		merged := false
		if i+1 < len(q.samples) {
			next := q.samples[i+1]
			if cur.gap+next.gap+next.delta <= threshold(rank) {
				next.gap += cur.gap
				q.samples[i+1] = next
				merged = true
			}
		}
		if !merged {
			out = append(out, cur)
		}
	}
	out = append(out, q.samples[len(q.samples)-1])
	q.samples = out
}

// Query returns the approximate value at quantile q in [0, 1] and the
// number of samples that went into the estimate.
func (q *quantileSummary) Query(quantile float64) (float64, int, bool) {
	if len(q.samples) == 0 {
		return 0, 0, false
	}
	if quantile <= 0 {
		return q.samples[0].value, q.n, true
	}
	if quantile >= 1 {
		return q.samples[len(q.samples)-1].value, q.n, true
	}

	rank := int(math.Ceil(quantile * float64(q.n)))
	var r int
	maxRank := func() int { return rank + int(math.Ceil(float64(q.n)*q.epsilon)) }

	for i, s := range q.samples {
		r += s.gap
		if r+s.delta > maxRank() {
			if i == 0 {
				return s.value, q.n, true
			}
			return q.samples[i-1].value, q.n, true
		}
	}
	return q.samples[len(q.samples)-1].value, q.n, true
}

func (q *quantileSummary) Count() int { return q.n }

func (q *quantileSummary) Sum() float64 { return q.sum }

func (q *quantileSummary) Mean() (float64, bool) {
	if q.n == 0 {
		return 0, false
	}
	return q.sum / float64(q.n), true
}

func (q *quantileSummary) Last() (float64, bool) {
	if q.n == 0 {
		return 0, false
	}
	return q.last, true
}

// Merge folds other's samples into q. It is not a true CKMS structural
// merge (which requires rank-interleaving both summaries) but a resample
// that preserves the sum/count/last exactly and keeps the quantile error
// within the documented epsilon bound for the combined stream, which is
// what the bucket-merge invariant in spec.md requires.
func (q *quantileSummary) Merge(other *quantileSummary) {
	if other == nil {
		return
	}
	q.n += other.n
	q.sum += other.sum
	if other.n > 0 {
		q.last = other.last
	}
	q.samples = append(q.samples, other.samples...)
	sort.Slice(q.samples, func(i, j int) bool { return q.samples[i].value < q.samples[j].value })
	q.compress()
}

// Clone returns an independent copy.
func (q *quantileSummary) Clone() *quantileSummary {
	out := &quantileSummary{epsilon: q.epsilon, n: q.n, sum: q.sum, last: q.last}
	out.samples = make([]ckmsSample, len(q.samples))
	copy(out.samples, q.samples)
	return out
}
