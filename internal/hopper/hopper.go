// Package hopper implements the durable, disk-spilling multi-producer
// single-consumer channel (C3): a directory of length-prefixed frame
// files, with ownership of the active file handed off between writers and
// the single reader through the POSIX read-only bit and a small amount of
// shared, mutex-guarded state.
//
// Grounded on friggdb/wal's append-then-rotate head block, generalized
// from tempo's single-writer WAL to the many-senders-one-receiver shape
// spec.md §4.1 describes.
package hopper

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/facette/natsort"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/pkg/errors"
)

const lengthPrefixSize = 4

// state is the shared, mutex-guarded bookkeeping every sender and the
// receiver coordinate through, per spec.md §4.1's "shared process-level
// lock (C3 state)".
type state struct {
	mu           sync.Mutex
	bytesWritten int64
	writesToRead int64
	senderSeqNum int64
}

// Channel owns a directory of queue files shared by every Sender it
// issues and the one Receiver opened alongside it.
type Channel struct {
	dir      string
	maxBytes int64
	state    *state
}

// Open creates (if necessary) directory as a hopper channel and returns a
// clonable Sender and a single Receiver over it, per spec.md §4.1's
// `open(name, directory, max_bytes)` contract. name is used only to scope
// log output; the directory itself is the channel's identity.
func Open(name, directory string, maxBytes int64) (*Sender, *Receiver, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, nil, errors.Wrapf(err, "hopper: creating channel directory %q", directory)
	}

	seqNums, err := listSequenceNumbers(directory)
	if err != nil {
		return nil, nil, err
	}

	ch := &Channel{dir: directory, maxBytes: maxBytes, state: &state{}}

	active := int64(0)
	if len(seqNums) > 0 {
		active = seqNums[len(seqNums)-1]
	}
	ch.state.senderSeqNum = active

	if sz, err := fileSize(ch.filePath(active)); err == nil {
		ch.state.bytesWritten = sz
	}

	sender := &Sender{channel: ch, name: name, seqNum: active}
	f, err := sender.openForAppend(active)
	if err != nil {
		return nil, nil, err
	}
	sender.file = f

	readSeq := int64(0)
	if len(seqNums) > 0 {
		readSeq = seqNums[0]
	}
	receiver := &Receiver{channel: ch, name: name, seqNum: readSeq}

	pending, err := countPendingFrames(ch, seqNums)
	if err != nil {
		return nil, nil, err
	}
	ch.state.writesToRead = pending

	return sender, receiver, nil
}

// countPendingFrames re-derives writesToRead across every queue file left
// on disk by a prior process, per spec.md §8's channel recovery invariant:
// a freshly Open'd channel must deliver every event a previous process
// wrote and never got to consume. A trailing partial frame (a crash
// mid-write) ends the count for that file without error, the same
// tolerance Receiver.Next applies to a file still being written.
func countPendingFrames(ch *Channel, seqNums []int64) (int64, error) {
	var total int64
	for _, seq := range seqNums {
		n, err := countFramesInFile(ch.filePath(seq))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func countFramesInFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "hopper: opening queue file %q for recovery scan", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var count int64
	for {
		var lenBuf [lengthPrefixSize]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return count, nil
			}
			return 0, errors.Wrap(err, "hopper: reading frame length during recovery scan")
		}

		length := binary.BigEndian.Uint32(lenBuf[:])
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return count, nil
			}
			return 0, errors.Wrap(err, "hopper: reading frame body during recovery scan")
		}

		count++
	}
}

func (c *Channel) filePath(seq int64) string {
	return filepath.Join(c.dir, strconv.FormatInt(seq, 10))
}

func listSequenceNumbers(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "hopper: listing channel directory")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	natsort.Sort(names)
	out := make([]int64, 0, len(names))
	for _, n := range names {
		v, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func isReadOnly(fi os.FileInfo) bool {
	return fi.Mode().Perm()&0o200 == 0
}

func markReadOnly(path string) error {
	return os.Chmod(path, 0o444)
}

// Sender is a clonable handle for appending events to the channel. Each
// clone tracks its own file descriptor and cached seq_num independently,
// per spec.md §4.1's rollover algorithm.
type Sender struct {
	channel *Channel
	name    string
	seqNum  int64
	file    *os.File
}

// Clone returns a new Sender fanned in to the same channel, sharing its
// Channel state but owning an independent file handle and cached seq_num.
func (s *Sender) Clone() (*Sender, error) {
	s.channel.state.mu.Lock()
	active := s.channel.state.senderSeqNum
	s.channel.state.mu.Unlock()

	clone := &Sender{channel: s.channel, name: s.name, seqNum: active}
	f, err := clone.openForAppend(active)
	if err != nil {
		return nil, err
	}
	clone.file = f
	return clone, nil
}

func (s *Sender) openForAppend(seq int64) (*os.File, error) {
	path := s.channel.filePath(seq)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "hopper: opening queue file %q for append", path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "hopper: seeking to end of queue file")
	}
	return f, nil
}

// Send encodes ev and appends it to the channel, rolling over to a new
// queue file if necessary. It blocks on I/O but never on queue depth.
func (s *Sender) Send(ev metric.Event) error {
	payload, err := metric.Encode(ev)
	if err != nil {
		return errors.Wrap(err, "hopper: encoding event")
	}
	frame := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[lengthPrefixSize:], payload)

	st := s.channel.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.seqNum != st.senderSeqNum {
		// fell behind a rollover another sender led
		if err := markReadOnly(s.channel.filePath(s.seqNum)); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "hopper: marking stale queue file read-only")
		}
		s.file.Close()
		s.seqNum = st.senderSeqNum
		f, err := s.openForAppend(s.seqNum)
		if err != nil {
			return err
		}
		s.file = f
	}

	if st.bytesWritten+int64(len(frame)) > s.channel.maxBytes {
		if err := markReadOnly(s.channel.filePath(s.seqNum)); err != nil {
			return errors.Wrap(err, "hopper: marking full queue file read-only")
		}
		st.senderSeqNum = s.seqNum + 1
		st.bytesWritten = 0
		s.file.Close()
		s.seqNum = st.senderSeqNum
		f, err := s.openForAppend(s.seqNum)
		if err != nil {
			return err
		}
		s.file = f
	}

	n, err := s.file.Write(frame)
	if err != nil {
		return errors.Wrap(err, "hopper: writing frame")
	}
	if err := s.file.Sync(); err != nil {
		return errors.Wrap(err, "hopper: flushing frame")
	}
	st.bytesWritten += int64(n)
	st.writesToRead++
	return nil
}

// Close releases the sender's file handle without affecting the channel.
func (s *Sender) Close() error {
	return s.file.Close()
}

// Receiver is the single consumer of a channel's events, reading across
// every queue file in ascending sequence order.
type Receiver struct {
	channel *Channel
	name    string
	seqNum  int64
	file    *os.File
	reader  *bufio.Reader
}

// Next returns the next event in FIFO order, or (Event{}, false, nil) if
// the channel is currently empty. It loops internally across a rollover
// handoff (deleting a fully-consumed read-only file and advancing to its
// successor) rather than recursing, since the state lock is held for the
// whole call.
func (r *Receiver) Next() (metric.Event, bool, error) {
	st := r.channel.state
	st.mu.Lock()
	defer st.mu.Unlock()

	for {
		if st.writesToRead == 0 {
			return metric.Event{}, false, nil
		}

		if r.file == nil {
			f, err := os.Open(r.channel.filePath(r.seqNum))
			if err != nil {
				return metric.Event{}, false, errors.Wrapf(err, "hopper: opening queue file %d for read", r.seqNum)
			}
			r.file = f
			r.reader = bufio.NewReader(f)
		}

		var lenBuf [lengthPrefixSize]byte
		if _, err := io.ReadFull(r.reader, lenBuf[:]); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return metric.Event{}, false, errors.Wrap(err, "hopper: reading frame length")
			}
			fi, statErr := r.file.Stat()
			if statErr != nil {
				return metric.Event{}, false, errors.Wrap(statErr, "hopper: stat queue file")
			}
			if !isReadOnly(fi) {
				// a writer is mid-commit; caller should retry
				return metric.Event{}, false, nil
			}
			path := r.channel.filePath(r.seqNum)
			r.file.Close()
			r.file = nil
			r.reader = nil
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return metric.Event{}, false, errors.Wrap(err, "hopper: unlinking consumed queue file")
			}
			r.seqNum++
			continue
		}

		length := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r.reader, payload); err != nil {
			return metric.Event{}, false, errors.Wrap(err, "hopper: reading frame body (queue corrupt)")
		}

		ev, err := metric.Decode(payload)
		if err != nil {
			return metric.Event{}, false, errors.Wrap(err, "hopper: decoding frame (queue corrupt)")
		}

		st.writesToRead--
		return ev, true, nil
	}
}

// Close releases the receiver's file handle.
func (r *Receiver) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
