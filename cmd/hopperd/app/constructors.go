package app

import (
	"time"

	"github.com/hopperd/hopper/filters"
	"github.com/hopperd/hopper/internal/ackbag"
	"github.com/hopperd/hopper/internal/runtime"
	"github.com/hopperd/hopper/internal/valve"
	"github.com/hopperd/hopper/sinks"
	"github.com/hopperd/hopper/sources"
	"github.com/pkg/errors"
)

// runnableSource is the shape every concrete sources.* type exposes:
// Run blocks serving traffic until Close is called from another
// goroutine, at which point Run returns.
type runnableSource interface {
	Run() error
	Close() error
}

// valver is implemented by filters that expose a back-pressure signal
// an upstream stage should watch, currently only filters.FlushBoundary.
type valver interface {
	Valve() *valve.Valve
}

// sourceBuilders maps a configured source type to its constructor. Each
// constructor receives the already-resolved forward senders for that
// source's configured Forwards.
var sourceBuilders = map[string]func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error){
	"statsd": func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error) {
		return sources.NewStatsD(cfg.Addr, forwards, cfg.Epsilon, cfg.HistogramBounds)
	},
	"graphite": func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error) {
		return sources.NewGraphite(cfg.Addr, forwards)
	},
	"native": func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error) {
		return sources.NewNative(cfg.Addr, forwards, ackbag.Default)
	},
	"avro": func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error) {
		return sources.NewAvro(cfg.Addr, forwards, ackbag.Default)
	},
	"journald": func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error) {
		reader, err := sources.NewExecJournalReader(cfg.Units...)
		if err != nil {
			return nil, errors.Wrap(err, "journald source")
		}
		return sources.NewJournald(reader, "journald", forwards), nil
	},
	"file_tail": func(cfg SourceConfig, forwards []sources.Sender) (runnableSource, error) {
		interval := cfg.PollInterval
		if interval == 0 {
			interval = defaultFileTailPollInterval
		}
		return sources.NewFileTail(cfg.Paths, interval, forwards), nil
	},
}

// filterBuilders maps a configured filter type to its constructor.
var filterBuilders = map[string]func(cfg FilterConfig) (runtime.Filter, error){
	"id": func(cfg FilterConfig) (runtime.Filter, error) {
		return filters.NewIdentity(), nil
	},
	"collectd_scrub": func(cfg FilterConfig) (runtime.Filter, error) {
		return filters.NewCollectdScrub(cfg.DropTags), nil
	},
	"delay": func(cfg FilterConfig) (runtime.Filter, error) {
		if cfg.Delay <= 0 {
			return nil, errors.Errorf("filter %q: delay must be positive", cfg.Name)
		}
		return filters.NewDelay(cfg.Delay), nil
	},
	"flush_boundary": func(cfg FilterConfig) (runtime.Filter, error) {
		tolerance := cfg.Tolerance
		if tolerance <= 0 {
			tolerance = defaultFlushBoundaryTolerance
		}
		return filters.NewFlushBoundary(tolerance), nil
	},
}

// sinkBuilders maps a configured sink type to its constructor.
var sinkBuilders = map[string]func(cfg SinkConfig) (runtime.Sink, error){
	"console": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewConsole(nil), nil
	},
	"null": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewNull(), nil
	},
	"wavefront": func(cfg SinkConfig) (runtime.Sink, error) {
		binWidth := cfg.BinWidth
		if binWidth == 0 {
			binWidth = 1
		}
		return sinks.NewWavefront(cfg.Addr, binWidth, cfg.FlushInterval), nil
	},
	"kafka": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewKafka(cfg.Brokers, cfg.Topic)
	},
	"prometheus": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewPrometheus(), nil
	},
	"influxdb": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewInfluxDB(cfg.URL)
	},
	"elasticsearch": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewElasticsearch(cfg.URL)
	},
	"firehose": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewFirehose(cfg.URL)
	},
	"kinesis": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewKinesis(cfg.URL)
	},
	"federation": func(cfg SinkConfig) (runtime.Sink, error) {
		return sinks.NewFederation(cfg.URL)
	},
}

const (
	defaultFileTailPollInterval   = time.Second
	defaultFlushBoundaryTolerance = 10000
)
