package metric

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Encode and Decode implement the implementation-chosen binary encoding for
// an Event's payload inside the hopper channel's length-prefixed frame
// (spec.md §6: "framed payload is the serialized Event in an
// implementation-chosen binary encoding"). The encoding is deliberately
// flat and allocation-light, in the style of friggdb/encoding's
// MarshalObjectToWriter — fixed-width big-endian writes into a
// bytes.Buffer, no reflection.

const (
	tagTelemetry byte = 1
	tagLog       byte = 2
	tagRaw       byte = 3
	tagTimer     byte = 4
	tagShutdown  byte = 5

	kindSetByte       byte = 0
	kindSumByte       byte = 1
	kindSummarizeByte byte = 2
	kindHistogramByte byte = 3
)

// Encode serializes e into a self-contained byte slice suitable for framing
// inside a hopper queue file.
func Encode(e Event) ([]byte, error) {
	var buf bytes.Buffer
	switch e.kind {
	case EventTelemetry:
		buf.WriteByte(tagTelemetry)
		if err := encodeTelemetry(&buf, e.telemetry); err != nil {
			return nil, err
		}
	case EventLog:
		buf.WriteByte(tagLog)
		encodeLogLine(&buf, e.log)
	case EventRaw:
		buf.WriteByte(tagRaw)
		encodeRaw(&buf, e.raw)
	case EventTimerFlush:
		buf.WriteByte(tagTimer)
		writeU64(&buf, e.timerIdx)
	case EventShutdown:
		buf.WriteByte(tagShutdown)
	default:
		return nil, fmt.Errorf("metric: cannot encode event kind %v", e.kind)
	}
	return buf.Bytes(), nil
}

// Decode deserializes an Event previously produced by Encode.
func Decode(b []byte) (Event, error) {
	r := bytes.NewReader(b)
	tag, err := r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	switch tag {
	case tagTelemetry:
		t, err := decodeTelemetry(r)
		if err != nil {
			return Event{}, err
		}
		return NewTelemetryEvent(t), nil
	case tagLog:
		l, err := decodeLogLine(r)
		if err != nil {
			return Event{}, err
		}
		return NewLogEvent(l), nil
	case tagRaw:
		p, err := decodeRaw(r)
		if err != nil {
			return Event{}, err
		}
		return NewRawEvent(p), nil
	case tagTimer:
		idx, err := readU64(r)
		if err != nil {
			return Event{}, err
		}
		return NewTimerFlushEvent(idx), nil
	case tagShutdown:
		return ShutdownEvent, nil
	default:
		return Event{}, fmt.Errorf("metric: unknown event tag %d", tag)
	}
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) { writeU64(buf, uint64(v)) }

func writeF64(buf *bytes.Buffer, v float64) {
	writeU64(buf, math.Float64bits(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeU64(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeTagMap(buf *bytes.Buffer, t TagMap) {
	writeU64(buf, uint64(t.Len()))
	t.Range(func(k, v string) {
		writeString(buf, k)
		writeString(buf, v)
	})
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readI64(r *bytes.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func readF64(r *bytes.Reader) (float64, error) {
	v, err := readU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU64(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}

func readTagMap(r *bytes.Reader) (TagMap, error) {
	n, err := readU64(r)
	if err != nil {
		return TagMap{}, err
	}
	var t TagMap
	for i := uint64(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return TagMap{}, err
		}
		v, err := readString(r)
		if err != nil {
			return TagMap{}, err
		}
		t.Set(k, v)
	}
	return t, nil
}

func encodeTelemetry(buf *bytes.Buffer, t *Telemetry) error {
	writeString(buf, t.name)
	writeTagMap(buf, t.tags)
	writeI64(buf, t.timestamp)
	writeI64(buf, t.nanos)
	if t.persist {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	switch t.val.kind {
	case KindSet:
		buf.WriteByte(kindSetByte)
		writeF64(buf, t.val.setVal)
	case KindSum:
		buf.WriteByte(kindSumByte)
		writeF64(buf, t.val.sumVal)
		writeU64(buf, t.val.sumCount)
	case KindSummarize:
		buf.WriteByte(kindSummarizeByte)
		writeF64(buf, t.val.summarize.epsilon)
		writeU64(buf, uint64(len(t.val.summarize.samples)))
		for _, s := range t.val.summarize.samples {
			writeF64(buf, s.value)
			writeU64(buf, uint64(s.gap))
			writeU64(buf, uint64(s.delta))
		}
		writeU64(buf, uint64(t.val.summarize.n))
		writeF64(buf, t.val.summarize.sum)
		writeF64(buf, t.val.summarize.last)
	case KindHistogram:
		buf.WriteByte(kindHistogramByte)
		writeU64(buf, uint64(len(t.val.histogram.bounds)))
		for _, bnd := range t.val.histogram.bounds {
			writeF64(buf, bnd)
		}
		for _, c := range t.val.histogram.counts {
			writeU64(buf, c)
		}
		writeF64(buf, t.val.histogram.sum)
		writeU64(buf, t.val.histogram.count)
	default:
		return fmt.Errorf("metric: unknown telemetry kind %v", t.val.kind)
	}
	return nil
}

func decodeTelemetry(r *bytes.Reader) (*Telemetry, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	tags, err := readTagMap(r)
	if err != nil {
		return nil, err
	}
	ts, err := readI64(r)
	if err != nil {
		return nil, err
	}
	nanos, err := readI64(r)
	if err != nil {
		return nil, err
	}
	persistByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	var v *value
	switch kindByte {
	case kindSetByte:
		f, err := readF64(r)
		if err != nil {
			return nil, err
		}
		v = newSetValue(f)
	case kindSumByte:
		f, err := readF64(r)
		if err != nil {
			return nil, err
		}
		cnt, err := readU64(r)
		if err != nil {
			return nil, err
		}
		v = &value{kind: KindSum, sumVal: f, sumCount: cnt}
	case kindSummarizeByte:
		eps, err := readF64(r)
		if err != nil {
			return nil, err
		}
		n, err := readU64(r)
		if err != nil {
			return nil, err
		}
		q := newQuantileSummary(eps)
		q.samples = make([]ckmsSample, n)
		for i := uint64(0); i < n; i++ {
			val, err := readF64(r)
			if err != nil {
				return nil, err
			}
			gap, err := readU64(r)
			if err != nil {
				return nil, err
			}
			delta, err := readU64(r)
			if err != nil {
				return nil, err
			}
			q.samples[i] = ckmsSample{value: val, gap: int(gap), delta: int(delta)}
		}
		cnt, err := readU64(r)
		if err != nil {
			return nil, err
		}
		sum, err := readF64(r)
		if err != nil {
			return nil, err
		}
		last, err := readF64(r)
		if err != nil {
			return nil, err
		}
		q.n = int(cnt)
		q.sum = sum
		q.last = last
		v = &value{kind: KindSummarize, summarize: q}
	case kindHistogramByte:
		n, err := readU64(r)
		if err != nil {
			return nil, err
		}
		bounds := make([]float64, n)
		for i := range bounds {
			bounds[i], err = readF64(r)
			if err != nil {
				return nil, err
			}
		}
		h := newHistogramValue(bounds)
		for i := range h.counts {
			c, err := readU64(r)
			if err != nil {
				return nil, err
			}
			h.counts[i] = c
		}
		sum, err := readF64(r)
		if err != nil {
			return nil, err
		}
		cnt, err := readU64(r)
		if err != nil {
			return nil, err
		}
		h.sum = sum
		h.count = cnt
		v = &value{kind: KindHistogram, histogram: h}
	default:
		return nil, fmt.Errorf("metric: unknown telemetry value tag %d", kindByte)
	}

	return &Telemetry{
		name:      name,
		tags:      tags,
		timestamp: ts,
		nanos:     nanos,
		persist:   persistByte == 1,
		val:       v,
	}, nil
}

func encodeLogLine(buf *bytes.Buffer, l *LogLine) {
	writeString(buf, l.Path())
	writeI64(buf, l.timestamp)
	writeString(buf, l.value)
	writeTagMap(buf, l.fields)
	writeTagMap(buf, l.tags)
}

func decodeLogLine(r *bytes.Reader) (LogLine, error) {
	path, err := readString(r)
	if err != nil {
		return LogLine{}, err
	}
	ts, err := readI64(r)
	if err != nil {
		return LogLine{}, err
	}
	val, err := readString(r)
	if err != nil {
		return LogLine{}, err
	}
	fields, err := readTagMap(r)
	if err != nil {
		return LogLine{}, err
	}
	tags, err := readTagMap(r)
	if err != nil {
		return LogLine{}, err
	}
	l := NewLogLine(path, val, ts)
	l.fields = fields
	l.tags = tags
	return l, nil
}

func encodeRaw(buf *bytes.Buffer, p *RawPayload) {
	writeU64(buf, p.OrderBy)
	writeString(buf, p.Encoding)
	writeU64(buf, uint64(len(p.Bytes)))
	buf.Write(p.Bytes)
	writeTagMap(buf, p.Metadata)
	if p.ConnectionID != nil {
		buf.WriteByte(1)
		b, _ := p.ConnectionID.MarshalBinary()
		buf.Write(b)
	} else {
		buf.WriteByte(0)
	}
}

func decodeRaw(r *bytes.Reader) (RawPayload, error) {
	orderBy, err := readU64(r)
	if err != nil {
		return RawPayload{}, err
	}
	encoding, err := readString(r)
	if err != nil {
		return RawPayload{}, err
	}
	n, err := readU64(r)
	if err != nil {
		return RawPayload{}, err
	}
	bs := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(bs); err != nil {
			return RawPayload{}, err
		}
	}
	meta, err := readTagMap(r)
	if err != nil {
		return RawPayload{}, err
	}
	haveConn, err := r.ReadByte()
	if err != nil {
		return RawPayload{}, err
	}
	var connID *uuid.UUID
	if haveConn == 1 {
		b := make([]byte, 16)
		if _, err := r.Read(b); err != nil {
			return RawPayload{}, err
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return RawPayload{}, err
		}
		connID = &id
	}
	return RawPayload{OrderBy: orderBy, Encoding: encoding, Bytes: bs, Metadata: meta, ConnectionID: connID}, nil
}
