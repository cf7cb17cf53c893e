package metric

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// BuildError is returned by Builder.Build when a Telemetry was assembled
// incorrectly — missing a name, aggregation kind or initial value, an
// out-of-range quantile error bound, or empty histogram bounds. Calling
// more than one variant setter is not an error: the last call wins.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return "telemetry: " + e.Reason }

// Telemetry is a tagged, timestamped numeric sample with one aggregation
// variant fixed at construction. See spec.md §3.
type Telemetry struct {
	name      string
	tags      TagMap
	timestamp int64 // seconds since epoch
	nanos     int64
	persist   bool
	val       *value
}

// Builder assembles a Telemetry. Zero value is not usable; start with
// NewBuilder. Mirrors the original's SoftTelemetry: every field is
// optional until Build, which validates required combinations.
type Builder struct {
	name         string
	haveName     bool
	tags         TagMap
	timestamp    int64
	haveTime     bool
	nanos        int64
	persist      bool
	kind         Kind
	haveKind     bool
	initialValue float64
	haveInitial  bool
	epsilon      float64
	bounds       []float64
}

// NewBuilder starts a Telemetry builder for the given metric name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, haveName: name != "", epsilon: 0.001}
}

func (b *Builder) Timestamp(seconds int64) *Builder {
	b.timestamp = seconds
	b.haveTime = true
	return b
}

func (b *Builder) TimestampNanos(nanos int64) *Builder {
	b.nanos = nanos
	return b
}

func (b *Builder) Tags(t TagMap) *Builder {
	b.tags = t
	return b
}

func (b *Builder) Persist(p bool) *Builder {
	b.persist = p
	return b
}

// Set configures a Set-aggregated telemetry with an initial sample.
func (b *Builder) Set(v float64) *Builder {
	b.kind = KindSet
	b.haveKind = true
	b.initialValue = v
	b.haveInitial = true
	return b
}

// Sum configures a Sum-aggregated telemetry with an initial sample.
func (b *Builder) Sum(v float64) *Builder {
	b.kind = KindSum
	b.haveKind = true
	b.initialValue = v
	b.haveInitial = true
	return b
}

// Summarize configures a quantile-summary telemetry with error bound
// epsilon (must be in (0, 1)) and an initial sample.
func (b *Builder) Summarize(epsilon, v float64) *Builder {
	b.kind = KindSummarize
	b.haveKind = true
	b.epsilon = epsilon
	b.initialValue = v
	b.haveInitial = true
	return b
}

// Histogram configures a fixed-bound histogram telemetry with an initial
// sample. bounds need not be pre-sorted.
func (b *Builder) Histogram(bounds []float64, v float64) *Builder {
	b.kind = KindHistogram
	b.haveKind = true
	b.bounds = bounds
	b.initialValue = v
	b.haveInitial = true
	return b
}

// Build validates and constructs the Telemetry, or returns a *BuildError.
func (b *Builder) Build() (*Telemetry, error) {
	if !b.haveName {
		return nil, &BuildError{Reason: "missing required field: name"}
	}
	if !b.haveKind {
		return nil, &BuildError{Reason: "missing required field: aggregation kind"}
	}
	if !b.haveInitial {
		return nil, &BuildError{Reason: "missing required field: initial value"}
	}
	if b.kind == KindSummarize && (b.epsilon <= 0 || b.epsilon >= 1) {
		return nil, &BuildError{Reason: fmt.Sprintf("quantile error bound out of range: %v", b.epsilon)}
	}
	if b.kind == KindHistogram && len(b.bounds) == 0 {
		return nil, &BuildError{Reason: "histogram telemetry requires at least one bound"}
	}

	var v *value
	switch b.kind {
	case KindSet:
		v = newSetValue(b.initialValue)
	case KindSum:
		v = newSumValue(b.initialValue)
	case KindSummarize:
		v = newSummarizeValue(b.epsilon, b.initialValue)
	case KindHistogram:
		v = newHistogramValueKind(b.bounds, b.initialValue)
	}

	return &Telemetry{
		name:      b.name,
		tags:      b.tags,
		timestamp: b.timestamp,
		nanos:     b.nanos,
		persist:   b.persist,
		val:       v,
	}, nil
}

func (t *Telemetry) Name() string           { return t.name }
func (t *Telemetry) Tags() TagMap           { return t.tags }
func (t *Telemetry) Timestamp() int64       { return t.timestamp }
func (t *Telemetry) TimestampNanos() int64  { return t.nanos }
func (t *Telemetry) Persist() bool          { return t.persist }
func (t *Telemetry) Kind() Kind             { return t.val.kind }

// WithName returns a deep copy of t renamed to name. Used by filters that
// rewrite a metric's identity (e.g. collectd_scrub) without disturbing
// its accumulated value.
func (t *Telemetry) WithName(name string) *Telemetry {
	clone := t.Clone()
	clone.name = name
	return clone
}

// WithTags returns a deep copy of t with its tag map replaced by tags.
func (t *Telemetry) WithTags(tags TagMap) *Telemetry {
	clone := t.Clone()
	clone.tags = tags
	return clone
}

// Insert feeds one more sample into this Telemetry's bin, per its variant.
func (t *Telemetry) Insert(sample float64) { t.val.insert(sample) }

// Set returns the set-aggregated value, if this Telemetry is KindSet.
func (t *Telemetry) Set() (float64, bool) { return t.val.Set() }

// Sum returns the summed value, if this Telemetry is KindSum.
func (t *Telemetry) Sum() (float64, bool) { return t.val.Sum() }

// Count returns the number of samples folded into this Telemetry.
func (t *Telemetry) Count() int { return t.val.Count() }

// Mean returns the arithmetic mean of recorded samples for Summarize and
// Histogram telemetry; for Set it returns the current value and for Sum
// the running total.
func (t *Telemetry) Mean() (float64, bool) { return t.val.Mean() }

// Query answers a quantile query in [0, 1]; meaningless outside KindSummarize.
func (t *Telemetry) Query(q float64) (float64, bool) { return t.val.Query(q) }

// HistogramCounts returns (bounds, per-bucket counts including +Inf
// overflow); meaningless outside KindHistogram.
func (t *Telemetry) HistogramCounts() ([]float64, []uint64, bool) {
	return t.val.HistogramCounts()
}

// Hash returns a deterministic 64-bit identity derived from (name, tags,
// kind) only — never value or timestamp, per spec.md's hash-stability
// invariant.
func (t *Telemetry) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(t.name)
	_, _ = h.Write([]byte{0})
	t.tags.Range(func(k, v string) {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(v)
		_, _ = h.Write([]byte{0})
	})
	_, _ = h.Write([]byte{byte(t.val.kind)})
	return h.Sum64()
}

// Merge combines rhs into t in place. Only telemetries of the same
// aggregation kind combine; a mismatched rhs leaves t unchanged. The
// persist flag of rhs wins, since it is assumed to be the more recent
// sample's policy.
func (t *Telemetry) Merge(rhs *Telemetry) {
	if t.val.kind != rhs.val.kind {
		return
	}
	t.val.mergeInto(rhs.val)
	t.persist = rhs.persist
}

// Clone returns a deep, independent copy.
func (t *Telemetry) Clone() *Telemetry {
	return &Telemetry{
		name:      t.name,
		tags:      t.tags.Clone(),
		timestamp: t.timestamp,
		nanos:     t.nanos,
		persist:   t.persist,
		val:       t.val.clone(),
	}
}

// WithBinStart returns a copy of t with its timestamp advanced to binStart
// and its value reset per the per-variant carry-forward rule, used by
// Buckets.Reset to roll a persistent telemetry forward into the current
// bin.
func (t *Telemetry) WithBinStart(binStart int64) *Telemetry {
	clone := t.Clone()
	clone.timestamp = binStart
	clone.val.resetForPersist()
	return clone
}
