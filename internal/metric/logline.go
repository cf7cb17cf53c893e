package metric

import "github.com/hopperd/hopper/internal/intern"

// LogLine is an unstructured line of text plus routing metadata. Mutation
// is through fluent setters that return a new instance, per spec.md §3 —
// mirroring original_source's LogLine builder methods (time/insert_field/
// overlay tag), which never mutate the receiver's storage in place.
type LogLine struct {
	pathID    uint64
	timestamp int64
	value     string
	fields    TagMap
	tags      TagMap
}

// NewLogLine builds a LogLine for path at the current cache generation.
// path is interned through the process-wide string cache (C12) so that
// many lines from the same tailed file share one allocation.
func NewLogLine(path, value string, timestamp int64) LogLine {
	return LogLine{
		pathID:    intern.Default.Store(path),
		value:     value,
		timestamp: timestamp,
	}
}

// Path returns the (interned) source path this line came from.
func (l LogLine) Path() string {
	p, _ := intern.Default.Get(l.pathID)
	return p
}

func (l LogLine) Value() string     { return l.value }
func (l LogLine) Timestamp() int64  { return l.timestamp }
func (l LogLine) Fields() TagMap    { return l.fields }
func (l LogLine) Tags() TagMap      { return l.tags }

// WithTimestamp returns a copy of l with timestamp replaced.
func (l LogLine) WithTimestamp(ts int64) LogLine {
	l.timestamp = ts
	return l
}

// WithField returns a copy of l with one more parsed field set.
func (l LogLine) WithField(key, val string) LogLine {
	l.fields = l.fields.Clone()
	l.fields.Set(key, val)
	return l
}

// WithTag returns a copy of l with one more routing tag set.
func (l LogLine) WithTag(key, val string) LogLine {
	l.tags = l.tags.Clone()
	l.tags.Set(key, val)
	return l
}
