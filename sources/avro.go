package sources

import (
	"net"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/ackbag"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/wire"
	"github.com/pkg/errors"
)

// Avro accepts the same length-prefixed C5 envelope as Native, but never
// attempts to decode the payload as a core Event — it always wraps it as
// an opaque Raw payload with encoding "avro", since decoding the Avro
// schema itself is out of scope (spec.md §1). Shares the native
// protocol's connection-id-keyed sync ack wiring.
type Avro struct {
	listener net.Listener
	forwards []Sender
	acks     *ackbag.Bag
}

// NewAvro binds addr and returns an Avro source. acks may be nil, in
// which case ackbag.Default is used.
func NewAvro(addr string, forwards []Sender, acks *ackbag.Bag) (*Avro, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "avro: listening on %q", addr)
	}
	if acks == nil {
		acks = ackbag.Default
	}
	return &Avro{listener: ln, forwards: forwards, acks: acks}, nil
}

// Close stops accepting new connections.
func (a *Avro) Close() error { return a.listener.Close() }

// Run accepts connections until the listener is closed, handling each on
// its own goroutine. Returns nil on the expected shutdown path.
func (a *Avro) Run() error {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "avro: accepting connection")
		}
		go a.handleConn(conn)
	}
}

func (a *Avro) handleConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.New()

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}

		id := connID
		ev := metric.NewRawEvent(metric.RawPayload{
			OrderBy:      frame.Header.OrderBy,
			Encoding:     "avro",
			Bytes:        frame.Payload,
			Metadata:     frame.Metadata,
			ConnectionID: &id,
		})

		if frame.Header.Sync() {
			a.acks.PrepareWait(connID)
		}

		for _, fwd := range a.forwards {
			_ = fwd.Send(ev)
		}

		if !frame.Header.Sync() {
			continue
		}

		if err := a.acks.WaitFor(connID); err != nil {
			a.acks.Remove(connID)
			return
		}
		a.acks.Remove(connID)

		if _, err := conn.Write(wire.EncodeAck(frame.Header.ID)); err != nil {
			return
		}
	}
}
