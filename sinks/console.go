// Package sinks holds the concrete runtime.Sink implementations wired
// into a hopperd topology.
package sinks

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/metric"
)

// Console writes every delivered telemetry and log line to an io.Writer
// (stdout by default), one line per event, flushing nothing since there
// is nothing to batch. Grounded on spec.md §4.8's console sink
// description; the simplest possible runtime.Sink and a useful default
// for local runs.
type Console struct {
	w io.Writer
}

// NewConsole returns a Console writing to w. A nil w defaults to os.Stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) Deliver(t *metric.Telemetry) {
	fmt.Fprintf(c.w, "%s %s %d\n", t.Kind(), t.Name(), t.Timestamp())
}

func (c *Console) DeliverLine(l metric.LogLine) {
	fmt.Fprintf(c.w, "%s: %s\n", l.Path(), l.Value())
}

func (c *Console) DeliverRaw(orderBy uint64, encoding string, payload []byte, connectionID *uuid.UUID) {
	fmt.Fprintf(c.w, "raw[%s] order_by=%d len=%d\n", encoding, orderBy, len(payload))
}

func (c *Console) Flush() {}

// FlushInterval reports ok=false: Console has nothing to batch, so it
// never needs to be driven by TimerFlush.
func (c *Console) FlushInterval() (uint64, bool) { return 0, false }

func (c *Console) Shutdown() {}
