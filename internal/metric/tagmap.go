// Package metric holds the core telemetry data model: tag maps, the
// Telemetry value and its four aggregation variants, log lines, and the
// Event union that crosses every hopper channel.
package metric

import "sort"

// TagMap is an ordered string/string map. Keys are kept sorted so that two
// maps built from the same set of entries compare equal and hash equal,
// regardless of insertion order.
type TagMap struct {
	pairs []tagPair
}

type tagPair struct {
	key, val string
}

// NewTagMap builds a TagMap from a plain Go map. Iteration order of the
// input is irrelevant; the result is always sorted by key.
func NewTagMap(m map[string]string) TagMap {
	tm := TagMap{pairs: make([]tagPair, 0, len(m))}
	for k, v := range m {
		tm.Set(k, v)
	}
	return tm
}

// Set inserts or overwrites key with val, keeping pairs sorted by key.
func (t *TagMap) Set(key, val string) {
	i := sort.Search(len(t.pairs), func(i int) bool { return t.pairs[i].key >= key })
	if i < len(t.pairs) && t.pairs[i].key == key {
		t.pairs[i].val = val
		return
	}
	t.pairs = append(t.pairs, tagPair{})
	copy(t.pairs[i+1:], t.pairs[i:])
	t.pairs[i] = tagPair{key: key, val: val}
}

// Get returns the value for key and whether it was present.
func (t TagMap) Get(key string) (string, bool) {
	i := sort.Search(len(t.pairs), func(i int) bool { return t.pairs[i].key >= key })
	if i < len(t.pairs) && t.pairs[i].key == key {
		return t.pairs[i].val, true
	}
	return "", false
}

// Len reports the number of entries.
func (t TagMap) Len() int { return len(t.pairs) }

// Range calls fn for each key/value pair in ascending key order.
func (t TagMap) Range(fn func(key, val string)) {
	for _, p := range t.pairs {
		fn(p.key, p.val)
	}
}

// Merge copies entries from other that are not already present. Existing
// keys in t are never overwritten (matches the Rust TagMap::merge, which
// only inserts on a miss).
func (t *TagMap) Merge(other TagMap) {
	for _, p := range other.pairs {
		if _, ok := t.Get(p.key); !ok {
			t.Set(p.key, p.val)
		}
	}
}

// Equal reports whether two tag maps hold the same entries (order does not
// matter since pairs are always kept sorted).
func (t TagMap) Equal(other TagMap) bool {
	if len(t.pairs) != len(other.pairs) {
		return false
	}
	for i := range t.pairs {
		if t.pairs[i] != other.pairs[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (t TagMap) Clone() TagMap {
	out := TagMap{pairs: make([]tagPair, len(t.pairs))}
	copy(out.pairs, t.pairs)
	return out
}
