// Package wire implements the length-prefixed native wire protocol (C5):
// frame header parsing, the optional version-2 metadata block, and a
// buffered stream reader that tolerates partial reads on non-blocking
// sockets.
//
// Grounded on friggdb/encoding/object.go's length-prefixed record framing,
// generalized to the header shape spec.md §4.5 specifies (version, control
// bits, id, order_by, optional metadata) rather than friggdb's id+length
// pair.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/pkg/errors"
)

const (
	// ControlSync requests a synchronous ack from the server.
	ControlSync uint32 = 1 << 0

	maxKeyLen   = 255
	maxValueLen = 65535
	maxPairs    = 255

	fixedHeaderSize = 4 + 4 + 4 + 8 + 8 // total_length, version, control, id, order_by
)

// ErrUnsupportedVersion is returned when a frame's version field is not 1
// or 2.
var ErrUnsupportedVersion = errors.New("wire: unsupported frame version")

// ErrMetadataLimit is returned when a version-2 metadata block violates
// one of the hard limits on key/value/pair counts.
var ErrMetadataLimit = errors.New("wire: metadata block exceeds a hard limit")

// Header is the parsed fixed portion of a native-protocol frame.
type Header struct {
	TotalLength uint32
	Version     uint32
	Control     uint32
	ID          uint64
	OrderBy     uint64
}

// Sync reports whether this frame requested a synchronous ack.
func (h Header) Sync() bool { return h.Control&ControlSync != 0 }

// Frame is a fully parsed native-protocol frame: header, optional
// metadata (version 2 only), and the remaining payload bytes.
type Frame struct {
	Header   Header
	Metadata metric.TagMap
	Payload  []byte
}

// ParseFrame decodes a complete frame (header + optional metadata +
// payload) from buf, which must hold exactly Header.TotalLength bytes
// beyond the total_length field itself — i.e. buf is the frame with its
// own 4-byte length prefix already stripped.
func ParseFrame(buf []byte) (Frame, error) {
	if len(buf) < fixedHeaderSize-4 {
		return Frame{}, errors.New("wire: frame shorter than fixed header")
	}

	r := &cursor{buf: buf}
	version := r.readU32()
	control := r.readU32()
	id := r.readU64()
	orderBy := r.readU64()

	if version != 1 && version != 2 {
		return Frame{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}

	hdr := Header{
		TotalLength: uint32(len(buf)) + 4,
		Version:     version,
		Control:     control,
		ID:          id,
		OrderBy:     orderBy,
	}

	var meta metric.TagMap
	if version >= 2 {
		m, err := parseMetadata(r)
		if err != nil {
			return Frame{}, err
		}
		meta = m
	}

	if r.err != nil {
		return Frame{}, r.err
	}

	return Frame{Header: hdr, Metadata: meta, Payload: buf[r.pos:]}, nil
}

func parseMetadata(r *cursor) (metric.TagMap, error) {
	var out metric.TagMap
	nPairs := int(r.readU8())
	if nPairs > maxPairs {
		return out, errors.Wrapf(ErrMetadataLimit, "n_pairs %d > %d", nPairs, maxPairs)
	}
	for i := 0; i < nPairs; i++ {
		keyLen := int(r.readU8())
		if keyLen > maxKeyLen {
			return out, errors.Wrapf(ErrMetadataLimit, "key_len %d > %d", keyLen, maxKeyLen)
		}
		key := r.readBytes(keyLen)
		valLen := int(r.readU16())
		if valLen > maxValueLen {
			return out, errors.Wrapf(ErrMetadataLimit, "val_len %d > %d", valLen, maxValueLen)
		}
		val := r.readBytes(valLen)
		if r.err != nil {
			return out, r.err
		}
		out.Set(string(key), string(val))
	}
	return out, nil
}

// cursor is a tiny big-endian byte cursor that latches the first error it
// hits so callers don't have to check after every read.
type cursor struct {
	buf []byte
	pos int
	err error
}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.pos+n > len(c.buf) {
		c.err = fmt.Errorf("wire: frame truncated, need %d more bytes at offset %d", n, c.pos)
		return false
	}
	return true
}

func (c *cursor) readU8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *cursor) readU16() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) readU32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) readU64() uint64 {
	if !c.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v
}

func (c *cursor) readBytes(n int) []byte {
	if !c.need(n) {
		return nil
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v
}

// EncodeAck builds the 8-byte big-endian ack payload written back to the
// socket after a synchronous frame's event has been consumed.
func EncodeAck(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}
