package sources

import (
	"net"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/ackbag"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/wire"
	"github.com/pkg/errors"
)

// Native accepts TCP connections carrying length-prefixed binary Event
// frames per the C5 wire protocol (internal/wire). Each connection is
// assigned a UUID at accept time; a frame with ControlSync set blocks
// that connection's read loop on ackbag.WaitFor(connID) before writing
// an 8-byte ack (the frame's own id, not the connection id) back to the
// client, per spec.md §4.5.
//
// Only frames that decode as an opaque Raw payload carry their
// connection id through to a downstream sink capable of acking it —
// a decoded native Event (Telemetry/Log/etc.) has no field to carry a
// connection id, so a sync frame of that shape is acked locally, as
// soon as it's hopped onto every forward, rather than waiting on a
// downstream sink.
type Native struct {
	listener net.Listener
	forwards []Sender
	acks     *ackbag.Bag
}

// NewNative binds addr (e.g. ":1972") and returns a Native source. acks
// may be nil, in which case ackbag.Default is used.
func NewNative(addr string, forwards []Sender, acks *ackbag.Bag) (*Native, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "native: listening on %q", addr)
	}
	if acks == nil {
		acks = ackbag.Default
	}
	return &Native{listener: ln, forwards: forwards, acks: acks}, nil
}

// Close stops accepting new connections.
func (n *Native) Close() error { return n.listener.Close() }

// Run accepts connections until the listener is closed, handling each on
// its own goroutine. Returns nil on the expected shutdown path.
func (n *Native) Run() error {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "native: accepting connection")
		}
		go n.handleConn(conn)
	}
}

func (n *Native) handleConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.New()

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}

		ev, isRaw := frameToEvent(frame, connID)

		if frame.Header.Sync() {
			n.acks.PrepareWait(connID)
		}

		for _, fwd := range n.forwards {
			_ = fwd.Send(ev)
		}

		if !frame.Header.Sync() {
			continue
		}

		if !isRaw {
			// No downstream sink can address this event by connection id, so
			// acknowledge locally once it's been fanned out.
			_ = n.acks.Ack(connID)
		}
		if err := n.acks.WaitFor(connID); err != nil {
			n.acks.Remove(connID)
			return
		}
		n.acks.Remove(connID)

		if _, err := conn.Write(wire.EncodeAck(frame.Header.ID)); err != nil {
			return
		}
	}
}

// frameToEvent interprets a parsed native frame's payload as an encoded
// Event (internal/metric.Encode's wire shape); a frame whose payload
// doesn't decode as one is treated as an opaque Raw passthrough instead,
// tagged with connID so a terminating sink can later call ackbag.Ack.
func frameToEvent(frame wire.Frame, connID uuid.UUID) (ev metric.Event, isRaw bool) {
	if decoded, err := metric.Decode(frame.Payload); err == nil {
		return decoded, false
	}
	id := connID
	return metric.NewRawEvent(metric.RawPayload{
		OrderBy:      frame.Header.OrderBy,
		Encoding:     "native",
		Bytes:        frame.Payload,
		Metadata:     frame.Metadata,
		ConnectionID: &id,
	}), true
}
