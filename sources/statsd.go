// Package sources holds the concrete ingestion endpoints wired into a
// hopperd topology: each one parses a wire format and turns it into
// Events pushed onto a set of forwards.
package sources

import (
	"bytes"
	"net"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/pkg/errors"
)

// Sender is the minimal send contract a source needs from its forwards;
// satisfied by *hopper.Sender.
type Sender interface {
	Send(metric.Event) error
}

// StatsD listens on a UDP socket for lines of the form
// "name:value|type[|@sample_rate][|#tag1:val1,tag2:val2]" and emits one
// Telemetry Event per line. Supported types: "c" (Sum), "g" (Set),
// "ms"/"h" (Summarize), "s" (a Set holding the xxhash of the member
// string, since hopper has no native "unique set" variant; it records the
// latest member's hash, not a count of distinct members).
// Grounded on the line-splitting/byte-slice parsing conventions used
// throughout the DataDog dogstatsd server (comp/dogstatsd/server), not
// on its multi-pipeline batching architecture, which is out of scope
// for a single-socket UDP source.
type StatsD struct {
	conn     *net.UDPConn
	forwards []Sender
	epsilon  float64
	bounds   []float64
}

// NewStatsD binds addr (e.g. ":8125") and returns a StatsD source
// forwarding parsed Events to forwards. epsilon configures the error
// bound for "ms"/"h" lines' Summarize telemetry; bounds configures the
// fixed histogram variant used for "h" lines when histogramBounds is
// non-empty — otherwise "h" behaves identically to "ms".
func NewStatsD(addr string, forwards []Sender, epsilon float64, histogramBounds []float64) (*StatsD, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "statsd: resolving %q", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "statsd: listening on %q", addr)
	}
	return &StatsD{conn: conn, forwards: forwards, epsilon: epsilon, bounds: histogramBounds}, nil
}

// Close releases the underlying socket.
func (s *StatsD) Close() error { return s.conn.Close() }

// Run reads datagrams until the socket is closed, parsing and
// forwarding each line it contains. Returns nil when the listener is
// closed out from under it (the expected shutdown path).
func (s *StatsD) Run() error {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "statsd: reading datagram")
		}
		for _, line := range bytes.Split(buf[:n], []byte{'\n'}) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			tel, perr := s.parseLine(line)
			if perr != nil {
				continue
			}
			ev := metric.NewTelemetryEvent(tel)
			for _, fwd := range s.forwards {
				_ = fwd.Send(ev)
			}
		}
	}
}

func (s *StatsD) parseLine(line []byte) (*metric.Telemetry, error) {
	// name:value|type[|@rate][|#tag1:v1,tag2:v2]
	nameEnd := bytes.IndexByte(line, ':')
	if nameEnd < 0 {
		return nil, errors.New("statsd: missing ':' separator")
	}
	name := string(line[:nameEnd])
	rest := line[nameEnd+1:]

	fields := bytes.Split(rest, []byte{'|'})
	if len(fields) < 2 {
		return nil, errors.New("statsd: missing value|type")
	}

	value, err := strconv.ParseFloat(string(fields[0]), 64)
	if err != nil {
		return nil, errors.Wrapf(err, "statsd: parsing value %q", fields[0])
	}
	typ := string(fields[1])

	var tags metric.TagMap
	for _, extra := range fields[2:] {
		if len(extra) > 0 && extra[0] == '#' {
			for _, pair := range strings.Split(string(extra[1:]), ",") {
				k, v, ok := strings.Cut(pair, ":")
				if ok {
					tags.Set(k, v)
				}
			}
		}
		// "@rate" sample-rate fields are accepted but not applied: hopper
		// records raw samples and leaves extrapolation to a downstream sink.
	}

	builder := metric.NewBuilder(name).Tags(tags)
	switch typ {
	case "c":
		return builder.Sum(value).Build()
	case "g":
		return builder.Set(value).Build()
	case "ms", "h":
		if typ == "h" && len(s.bounds) > 0 {
			return builder.Histogram(s.bounds, value).Build()
		}
		return builder.Summarize(s.epsilon, value).Build()
	case "s":
		return builder.Set(float64(xxhash.Sum64(fields[0]))).Build()
	default:
		return nil, errors.Errorf("statsd: unknown type %q", typ)
	}
}
