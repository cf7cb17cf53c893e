package sources

import (
	"bufio"
	"net"
	"strconv"
	"strings"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/pkg/errors"
)

// Graphite accepts TCP connections carrying newline-delimited
// "name value timestamp" triples (the plaintext Graphite carbon
// protocol) and emits one Set-aggregated Telemetry Event per line, per
// spec.md §8 scenario 2.
type Graphite struct {
	listener net.Listener
	forwards []Sender
}

// NewGraphite binds addr (e.g. ":2003") and returns a Graphite source.
func NewGraphite(addr string, forwards []Sender) (*Graphite, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "graphite: listening on %q", addr)
	}
	return &Graphite{listener: ln, forwards: forwards}, nil
}

// Close stops accepting new connections.
func (g *Graphite) Close() error { return g.listener.Close() }

// Run accepts connections until the listener is closed, handling each
// on its own goroutine. Returns nil on the expected shutdown path.
func (g *Graphite) Run() error {
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "graphite: accepting connection")
		}
		go g.handleConn(conn)
	}
}

func (g *Graphite) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tel, err := parseGraphiteLine(line)
		if err != nil {
			continue
		}
		ev := metric.NewTelemetryEvent(tel)
		for _, fwd := range g.forwards {
			_ = fwd.Send(ev)
		}
	}
}

func parseGraphiteLine(line string) (*metric.Telemetry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, errors.Errorf("graphite: expected 3 fields, got %d", len(fields))
	}
	name := fields[0]
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, errors.Wrapf(err, "graphite: parsing value %q", fields[1])
	}
	timestamp, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "graphite: parsing timestamp %q", fields[2])
	}
	return metric.NewBuilder(name).Timestamp(timestamp).Set(value).Build()
}
