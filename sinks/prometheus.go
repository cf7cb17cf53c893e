package sinks

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus exposes delivered telemetry as an in-process registry
// scraped over HTTP, rather than pushing anywhere — Sum telemetries
// become Counters, Set telemetries become Gauges, and
// Summarize/Histogram telemetries become Summary vectors with a fixed
// quantile set. Grounded on cmd/tempo-vulture/main.go's own
// `promhttp.Handler()` exposition pattern, the one place in the example
// corpus that wires client_golang's HTTP handler directly rather than
// through a framework's route registration.
type Prometheus struct {
	registry *prometheus.Registry

	mu        sync.Mutex
	counters  map[string]*prometheus.CounterVec
	gauges    map[string]*prometheus.GaugeVec
	summaries map[string]*prometheus.SummaryVec
}

// NewPrometheus returns a Prometheus sink with its own registry.
func NewPrometheus() *Prometheus {
	return &Prometheus{
		registry:  prometheus.NewRegistry(),
		counters:  make(map[string]*prometheus.CounterVec),
		gauges:    make(map[string]*prometheus.GaugeVec),
		summaries: make(map[string]*prometheus.SummaryVec),
	}
}

// Handler returns an http.Handler serving this sink's registry in the
// Prometheus exposition format, to be mounted at e.g. "/metrics".
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) Deliver(t *metric.Telemetry) {
	labelNames, labelValues := tagLabels(t.Tags())

	p.mu.Lock()
	defer p.mu.Unlock()

	switch t.Kind() {
	case metric.KindSum:
		v, ok := t.Sum()
		if !ok {
			return
		}
		c, known := p.counters[t.Name()]
		if !known {
			c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: sanitizeMetricName(t.Name())}, labelNames)
			p.registry.MustRegister(c)
			p.counters[t.Name()] = c
		}
		c.WithLabelValues(labelValues...).Add(v)

	case metric.KindSet:
		v, ok := t.Set()
		if !ok {
			return
		}
		g, known := p.gauges[t.Name()]
		if !known {
			g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: sanitizeMetricName(t.Name())}, labelNames)
			p.registry.MustRegister(g)
			p.gauges[t.Name()] = g
		}
		g.WithLabelValues(labelValues...).Set(v)

	case metric.KindSummarize, metric.KindHistogram:
		mean, ok := t.Mean()
		if !ok {
			return
		}
		s, known := p.summaries[t.Name()]
		if !known {
			s = prometheus.NewSummaryVec(prometheus.SummaryOpts{
				Name:       sanitizeMetricName(t.Name()),
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			}, labelNames)
			p.registry.MustRegister(s)
			p.summaries[t.Name()] = s
		}
		s.WithLabelValues(labelValues...).Observe(mean)
	}
}

func (p *Prometheus) DeliverLine(l metric.LogLine) {}

func (p *Prometheus) DeliverRaw(orderBy uint64, encoding string, payload []byte, connectionID *uuid.UUID) {
}

func (p *Prometheus) Flush() {}

// FlushInterval reports ok=false: values are exposed live on scrape, not
// batched on a TimerFlush cadence.
func (p *Prometheus) FlushInterval() (uint64, bool) { return 0, false }

func (p *Prometheus) Shutdown() {}

func tagLabels(tags metric.TagMap) (names, values []string) {
	tags.Range(func(k, v string) {
		names = append(names, sanitizeMetricName(k))
		values = append(values, v)
	})
	return names, values
}

// sanitizeMetricName replaces characters Prometheus's name/label grammar
// disallows (anything but [a-zA-Z0-9_:]) with '_'.
func sanitizeMetricName(name string) string {
	out := []byte(name)
	for i, c := range out {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == ':' {
			continue
		}
		out[i] = '_'
	}
	return string(out)
}
