package sinks

import (
	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/metric"
)

// Null discards everything delivered to it. Useful for benchmarking a
// route's source/filter stages in isolation from any real sink I/O.
type Null struct{}

// NewNull returns a Null sink.
func NewNull() *Null { return &Null{} }

func (n *Null) Deliver(t *metric.Telemetry)                                             {}
func (n *Null) DeliverLine(l metric.LogLine)                                            {}
func (n *Null) DeliverRaw(orderBy uint64, encoding string, payload []byte, id *uuid.UUID) {}
func (n *Null) Flush()                                                                  {}
func (n *Null) FlushInterval() (uint64, bool)                                           { return 0, false }
func (n *Null) Shutdown()                                                               {}
