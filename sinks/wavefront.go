package sinks

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/buckets"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/runtime"
)

var wavefrontQuantiles = []struct {
	suffix string
	q      float64
}{
	{"min", 0.0}, {"max", 1.0}, {"2", 0.02}, {"9", 0.09}, {"25", 0.25},
	{"50", 0.5}, {"75", 0.75}, {"90", 0.90}, {"91", 0.91}, {"95", 0.95},
	{"98", 0.98}, {"99", 0.99}, {"999", 0.999},
}

// Wavefront buffers delivered telemetry in its own Buckets aggregator
// and, on Flush, formats the accumulated bins as Wavefront plaintext
// ("name value timestamp tag=val ...") and writes them to a TCP proxy
// connection, retrying up to ten times with the shared exponential
// backoff on a failed connect/write. Grounded on original_source/src/sink/wavefront.rs's
// format_stats/flush pair; log lines are intentionally dropped, matching
// the original's empty deliver_lines.
type Wavefront struct {
	addr string
	aggs *buckets.Buckets

	flushInterval uint64
}

// NewWavefront returns a Wavefront sink dialing addr (host:port) on
// every flush, aggregating into bins of binWidth seconds, flushing
// every flushInterval base ticks.
func NewWavefront(addr string, binWidth int64, flushInterval uint64) *Wavefront {
	return &Wavefront{addr: addr, aggs: buckets.New(binWidth), flushInterval: flushInterval}
}

func (w *Wavefront) Deliver(t *metric.Telemetry) {
	w.aggs.Add(t)
}

func (w *Wavefront) DeliverLine(l metric.LogLine) {}

func (w *Wavefront) DeliverRaw(orderBy uint64, encoding string, payload []byte, connectionID *uuid.UUID) {
}

func (w *Wavefront) FlushInterval() (uint64, bool) { return w.flushInterval, true }

// FormatStats renders every accumulated bin as Wavefront plaintext,
// one line per (series, bin).
func (w *Wavefront) FormatStats() string {
	var sb strings.Builder

	flatSeries := func(seriesByHash map[uint64][]buckets.Series, value func(*metric.Telemetry) (float64, bool)) {
		for _, series := range seriesByHash {
			for _, s := range series {
				v, ok := value(s.Telemetry)
				if !ok {
					continue
				}
				fmt.Fprintf(&sb, "%s %v %d %s\n", s.Telemetry.Name(), v, s.Telemetry.Timestamp(), fmtTags(s.Telemetry.Tags()))
			}
		}
	}

	flatSeries(w.aggs.Counters(), (*metric.Telemetry).Sum)
	flatSeries(w.aggs.Gauges(), (*metric.Telemetry).Set)

	highSeries := func(seriesByHash map[uint64][]buckets.Series) {
		for _, series := range seriesByHash {
			for _, s := range series {
				tel := s.Telemetry
				for _, q := range wavefrontQuantiles {
					v, ok := tel.Query(q.q)
					if !ok {
						continue
					}
					fmt.Fprintf(&sb, "%s.%s %v %d %s\n", tel.Name(), q.suffix, v, tel.Timestamp(), fmtTags(tel.Tags()))
				}
				fmt.Fprintf(&sb, "%s.count %d %d %s\n", tel.Name(), tel.Count(), tel.Timestamp(), fmtTags(tel.Tags()))
			}
		}
	}

	highSeries(w.aggs.Summaries())
	highSeries(w.aggs.Histograms())

	return sb.String()
}

func fmtTags(tags metric.TagMap) string {
	var parts []string
	tags.Range(func(k, v string) {
		parts = append(parts, k+"="+v)
	})
	return strings.Join(parts, " ")
}

// Flush formats the accumulated bins and writes them to the Wavefront
// proxy, retrying on connect/write failure with runtime.Backoff up to ten
// times. It resets the aggregator only after a write succeeds, matching
// the original's "only clear buckets once the write actually lands"
// policy; if every retry fails it returns with the bins left in place.
func (w *Wavefront) Flush() {
	payload := w.FormatStats()
	if payload == "" {
		return
	}

	attempts := 0
	for {
		if attempts > 0 {
			time.Sleep(runtime.Backoff(attempts))
		}
		conn, err := net.DialTimeout("tcp", w.addr, 5*time.Second)
		if err != nil {
			attempts++
			if attempts > 10 {
				return
			}
			continue
		}
		_, writeErr := conn.Write([]byte(payload))
		conn.Close()
		if writeErr == nil {
			w.aggs.Reset(w.aggs.BinStart(time.Now().Unix()))
			return
		}
		attempts++
		if attempts > 10 {
			return
		}
	}
}

func (w *Wavefront) Shutdown() {}
