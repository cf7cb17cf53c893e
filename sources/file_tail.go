package sources

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/pkg/errors"
)

// FileTail polls a set of configured paths for new lines, emitting one
// LogLine Event per line. A path whose inode changes between polls (log
// rotation via rename-and-recreate, the common logrotate convention) is
// reopened from the start rather than treated as a truncation, matching
// spec.md §4.7's file-tail expansion.
type FileTail struct {
	paths    []string
	interval time.Duration
	forwards []Sender
	states   map[string]*tailState
	done     chan struct{}
}

type tailState struct {
	file   *os.File
	reader *bufio.Reader
	ino    uint64
	offset int64
}

// NewFileTail returns a FileTail polling paths every interval.
func NewFileTail(paths []string, interval time.Duration, forwards []Sender) *FileTail {
	return &FileTail{
		paths:    paths,
		interval: interval,
		forwards: forwards,
		states:   make(map[string]*tailState),
		done:     make(chan struct{}),
	}
}

// Close stops the polling loop.
func (t *FileTail) Close() error {
	close(t.done)
	for _, st := range t.states {
		if st.file != nil {
			_ = st.file.Close()
		}
	}
	return nil
}

// Run polls every configured path until Close is called.
func (t *FileTail) Run() error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return nil
		case <-ticker.C:
			for _, path := range t.paths {
				if err := t.pollOnce(path); err != nil {
					continue
				}
			}
		}
	}
}

func (t *FileTail) pollOnce(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "file_tail: stat %q", path)
	}
	ino := inodeOf(info)

	st, known := t.states[path]
	if !known {
		st = &tailState{}
		t.states[path] = st
	}

	if st.file == nil || st.ino != ino {
		if st.file != nil {
			_ = st.file.Close()
		}
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "file_tail: opening %q", path)
		}
		st.file = f
		st.reader = bufio.NewReader(f)
		st.ino = ino
		st.offset = 0
	}

	for {
		line, err := st.reader.ReadString('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
			st.offset += int64(len(line)) + 1
			ll := metric.NewLogLine(path, line, time.Now().Unix())
			ev := metric.NewLogEvent(ll)
			for _, fwd := range t.forwards {
				_ = fwd.Send(ev)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "file_tail: reading %q", path)
		}
	}
}
