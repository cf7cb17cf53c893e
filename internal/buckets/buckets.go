// Package buckets implements the aggregation engine (C2): four
// variant-indexed maps from a telemetry's identity hash to an ordered
// sequence of (bin_start, Telemetry) pairs, one sequence per distinct key.
package buckets

import (
	"sort"
	"sync"

	"github.com/hopperd/hopper/internal/metric"
)

// entry pairs a bin's start time with the Telemetry accumulated in it.
// A key's entries are always kept sorted by BinStart.
type entry struct {
	binStart int64
	telem    *metric.Telemetry
}

// Buckets is the bin-indexed aggregation store described by spec.md §4.2:
// add() merges an incoming sample into the bin it belongs to, reset() rolls
// every key forward to the next bin per its variant's carry-forward rule.
type Buckets struct {
	binWidth int64

	mu    sync.Mutex
	sets  map[uint64][]entry
	sums  map[uint64][]entry
	quant map[uint64][]entry
	hists map[uint64][]entry
}

// New returns an empty Buckets store with the given bin width, in seconds.
func New(binWidth int64) *Buckets {
	if binWidth <= 0 {
		binWidth = 1
	}
	return &Buckets{
		binWidth: binWidth,
		sets:     make(map[uint64][]entry),
		sums:     make(map[uint64][]entry),
		quant:    make(map[uint64][]entry),
		hists:    make(map[uint64][]entry),
	}
}

func (b *Buckets) mapFor(k metric.Kind) map[uint64][]entry {
	switch k {
	case metric.KindSet:
		return b.sets
	case metric.KindSum:
		return b.sums
	case metric.KindSummarize:
		return b.quant
	case metric.KindHistogram:
		return b.hists
	default:
		return nil
	}
}

// BinStart computes timestamp - (timestamp mod binWidth), per spec.md §3.
func (b *Buckets) BinStart(timestamp int64) int64 {
	return timestamp - (timestamp % b.binWidth)
}

// Add folds telem into the bin its timestamp falls in. If no entry exists
// yet for (hash, bin_start), one is inserted at the sorted position;
// otherwise the incoming sample merges into the stored Telemetry.
func (b *Buckets) Add(telem *metric.Telemetry) {
	variantMap := b.mapFor(telem.Kind())
	if variantMap == nil {
		return
	}
	hash := telem.Hash()
	binStart := b.BinStart(telem.Timestamp())

	b.mu.Lock()
	defer b.mu.Unlock()

	entries := variantMap[hash]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].binStart >= binStart })
	if i < len(entries) && entries[i].binStart == binStart {
		entries[i].telem.Merge(telem)
		return
	}
	entries = append(entries, entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry{binStart: binStart, telem: telem.Clone()}
	variantMap[hash] = entries
}

// Series is a read-only view of one key's ordered (bin_start, Telemetry)
// pairs, returned by the Counters/Gauges/Summaries/Histograms queries.
type Series struct {
	BinStart  int64
	Telemetry *metric.Telemetry
}

func snapshot(m map[uint64][]entry) map[uint64][]Series {
	out := make(map[uint64][]Series, len(m))
	for hash, entries := range m {
		series := make([]Series, len(entries))
		for i, e := range entries {
			series[i] = Series{BinStart: e.binStart, Telemetry: e.telem}
		}
		out[hash] = series
	}
	return out
}

// Gauges returns every Set-variant key's bin sequence.
func (b *Buckets) Gauges() map[uint64][]Series {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.sets)
}

// Counters returns every Sum-variant key's bin sequence.
func (b *Buckets) Counters() map[uint64][]Series {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.sums)
}

// Summaries returns every Summarize-variant key's bin sequence.
func (b *Buckets) Summaries() map[uint64][]Series {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.quant)
}

// Histograms returns every Histogram-variant key's bin sequence.
func (b *Buckets) Histograms() map[uint64][]Series {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.hists)
}

// Reset rolls every key forward across all four variant maps: entries that
// are not persistent are dropped, persistent entries are advanced to
// currentBin with their inner value cleared or carried forward per
// Telemetry.WithBinStart's per-variant rule (set: keep last value, sum:
// zero, summarize/histogram: empty).
func (b *Buckets) Reset(currentBin int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range []map[uint64][]entry{b.sets, b.sums, b.quant, b.hists} {
		resetMap(m, currentBin)
	}
}

func resetMap(m map[uint64][]entry, currentBin int64) {
	for hash, entries := range m {
		var kept []entry
		for _, e := range entries {
			if !e.telem.Persist() {
				continue
			}
			kept = append(kept, entry{binStart: currentBin, telem: e.telem.WithBinStart(currentBin)})
		}
		if len(kept) == 0 {
			delete(m, hash)
			continue
		}
		m[hash] = kept
	}
}
