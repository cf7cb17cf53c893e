package sinks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cristalhq/hedgedhttp"
	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/selftelemetry"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

// HTTPSink is a thin body-shipping sink shared by the influxdb,
// elasticsearch, firehose, kinesis and federation backends: it batches
// delivered telemetry as newline-delimited "name value timestamp tags"
// records (the lowest common denominator every one of those backends'
// line/bulk ingest APIs accepts with a thin adapter) and POSTs the batch
// to a configured URL on each Flush.
//
// Full backend-specific request shaping (InfluxDB line protocol
// quoting, Elasticsearch's bulk NDJSON action/metadata lines, AWS
// SigV4-signed Firehose/Kinesis PutRecord calls) is out of scope per
// spec.md §1 — no AWS SDK appears anywhere in the example corpus, so
// these stay HTTP-shaped rather than SDK-shaped. Requests go through
// github.com/cristalhq/hedgedhttp so a slow backend replica doesn't
// stall a flush: a second request races in after hedgeAfter if the
// first hasn't returned.
type HTTPSink struct {
	name       string
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	mu      sync.Mutex
	pending bytes.Buffer
}

// NewHTTPSink returns an HTTPSink named name (used only in failure
// counters) posting batched records to url. hedgeAfter is the delay
// before hedgedhttp fires a second, racing request; upto bounds how many
// total requests a single flush may issue. A gobreaker.CircuitBreaker sits
// in front of every request: five consecutive failed flushes trip it, and
// subsequent flushes fail fast for 30s instead of each blocking on a
// doomed request's timeout.
func NewHTTPSink(name, url string, hedgeAfter time.Duration, upto int) (*HTTPSink, error) {
	client, err := hedgedhttp.NewClient(hedgeAfter, upto, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: constructing hedged client", name)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPSink{name: name, url: url, httpClient: client, breaker: breaker}, nil
}

func (h *HTTPSink) Deliver(t *metric.Telemetry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := t.Mean()
	if !ok {
		if v, ok = t.Sum(); !ok {
			v, ok = t.Set()
		}
	}
	if !ok {
		return
	}
	h.pending.WriteString(t.Name())
	h.pending.WriteByte(' ')
	h.pending.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	h.pending.WriteByte(' ')
	h.pending.WriteString(strconv.FormatInt(t.Timestamp(), 10))
	t.Tags().Range(func(k, val string) {
		h.pending.WriteByte(' ')
		h.pending.WriteString(k)
		h.pending.WriteByte('=')
		h.pending.WriteString(val)
	})
	h.pending.WriteByte('\n')
}

func (h *HTTPSink) DeliverLine(l metric.LogLine) {}

func (h *HTTPSink) DeliverRaw(orderBy uint64, encoding string, payload []byte, connectionID *uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending.Write(payload)
	h.pending.WriteByte('\n')
}

func (h *HTTPSink) Flush() {
	h.mu.Lock()
	if h.pending.Len() == 0 {
		h.mu.Unlock()
		return
	}
	body := make([]byte, h.pending.Len())
	copy(body, h.pending.Bytes())
	h.pending.Reset()
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		selftelemetry.Counter("hopperd.sinks."+h.name+".error.request", metric.TagMap{}, 0)
		return
	}

	var badStatus bool
	result, err := h.breaker.Execute(func() (interface{}, error) {
		resp, err := h.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			badStatus = true
			return nil, errors.Errorf("%s: backend returned status %d", h.name, resp.StatusCode)
		}
		return resp, nil
	})
	switch {
	case err == gobreaker.ErrOpenState:
		selftelemetry.Counter("hopperd.sinks."+h.name+".error.breaker_open", metric.TagMap{}, 0)
	case badStatus:
		selftelemetry.Counter("hopperd.sinks."+h.name+".error.status", metric.TagMap{}, 0)
	case err != nil:
		selftelemetry.Counter("hopperd.sinks."+h.name+".error.do", metric.TagMap{}, 0)
	default:
		result.(*http.Response).Body.Close()
	}
}

// FlushInterval reports ok=false by default; callers that want
// TimerFlush-driven batching should wrap a fixed interval in front of
// Flush via their own sink struct embedding HTTPSink. Deliver only
// appends to the in-process buffer and never flushes it; the buffer is
// posted when Flush is called directly or on Shutdown.
func (h *HTTPSink) FlushInterval() (uint64, bool) { return 0, false }

func (h *HTTPSink) Shutdown() { h.Flush() }
