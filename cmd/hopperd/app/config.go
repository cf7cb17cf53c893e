package app

import (
	"flag"
	"time"

	"github.com/pkg/errors"
)

// Config is the root configuration for a hopperd process: the server
// listen address, the durable-channel defaults shared by every stage,
// and the three stage lists that together describe the routing topology
// (C6) — sources, filters, sinks — wired together by name through each
// stage's Forwards list.
//
// Grounded on cmd/tempo/app/config.go's root Config shape (a flat
// struct of named sub-configs, one RegisterFlagsAndApplyDefaults
// entrypoint) generalized from Tempo's fixed module set to hopperd's
// user-declared stage list.
type Config struct {
	Server   ServerConfig  `yaml:"server,omitempty"`
	Channels ChannelConfig `yaml:"channels,omitempty"`

	Sources []SourceConfig `yaml:"sources,omitempty"`
	Filters []FilterConfig `yaml:"filters,omitempty"`
	Sinks   []SinkConfig   `yaml:"sinks,omitempty"`
}

// ServerConfig configures the internal HTTP server (A4): /metrics and
// /healthz.
type ServerConfig struct {
	HTTPListenAddr string `yaml:"http_listen_addr,omitempty"`
}

// ChannelConfig configures the durable channel fabric (C3) shared by
// every filter and sink stage, and the tick cadence shared by every
// stage's TimerFlush-driven flush logic.
type ChannelConfig struct {
	Directory     string        `yaml:"directory,omitempty"`
	MaxBytes      int64         `yaml:"max_bytes,omitempty"`
	TickInterval  time.Duration `yaml:"tick_interval,omitempty"`
	SelfTelemetry string        `yaml:"self_telemetry_target,omitempty"`
}

// SourceConfig declares one ingestion endpoint (C6 expansion).
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Forwards []string `yaml:"forwards,omitempty"`

	Addr            string        `yaml:"addr,omitempty"`
	Epsilon         float64       `yaml:"epsilon,omitempty"`
	HistogramBounds []float64     `yaml:"histogram_bounds,omitempty"`
	Paths           []string      `yaml:"paths,omitempty"`
	PollInterval    time.Duration `yaml:"poll_interval,omitempty"`
	Units           []string      `yaml:"units,omitempty"`
}

// FilterConfig declares one transform stage (C9 expansion).
type FilterConfig struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Forwards []string `yaml:"forwards,omitempty"`

	Delay     time.Duration `yaml:"delay,omitempty"`
	Tolerance int           `yaml:"tolerance,omitempty"`
	DropTags  []string      `yaml:"drop_tags,omitempty"`
}

// SinkConfig declares one delivery endpoint (C8 expansion).
type SinkConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	Addr          string   `yaml:"addr,omitempty"`
	BinWidth      int64    `yaml:"bin_width,omitempty"`
	FlushInterval uint64   `yaml:"flush_interval,omitempty"`
	Brokers       []string `yaml:"brokers,omitempty"`
	Topic         string   `yaml:"topic,omitempty"`
	URL           string   `yaml:"url,omitempty"`
}

// RegisterFlagsAndApplyDefaults registers the handful of settings
// exposed as flags and fills in every other default, following
// cmd/tempo/app/config.go's RegisterFlagsAndApplyDefaults convention of
// one entrypoint that both seeds defaults and binds flags.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.Server.HTTPListenAddr = "127.0.0.1:8080"
	f.StringVar(&c.Server.HTTPListenAddr, prefix+"server.http-listen-addr", c.Server.HTTPListenAddr, "Address the internal HTTP server (/metrics, /healthz) listens on.")

	c.Channels.Directory = "./data/channels"
	c.Channels.MaxBytes = 128 * 1024 * 1024
	c.Channels.TickInterval = time.Second
	f.StringVar(&c.Channels.Directory, prefix+"channels.directory", c.Channels.Directory, "Root directory for durable channel spill files.")
	f.Int64Var(&c.Channels.MaxBytes, prefix+"channels.max-bytes", c.Channels.MaxBytes, "Maximum bytes per channel segment file before rolling over.")
	f.DurationVar(&c.Channels.TickInterval, prefix+"channels.tick-interval", c.Channels.TickInterval, "Interval between TimerFlush ticks fanned into every stage.")
}

// Validate checks the configuration is well-formed enough to build:
// every stage has a name, every type is recognized, and names are
// unique across all three stage lists (a forward can name a sink as
// easily as a filter, so the namespace is shared).
func (c *Config) Validate() error {
	seen := make(map[string]struct{})
	checkName := func(kind, name string) error {
		if name == "" {
			return errors.Errorf("%s: name is required", kind)
		}
		if _, dup := seen[name]; dup {
			return errors.Errorf("%s %q: duplicate stage name", kind, name)
		}
		seen[name] = struct{}{}
		return nil
	}

	for _, s := range c.Sources {
		if err := checkName("source", s.Name); err != nil {
			return err
		}
		if _, ok := sourceBuilders[s.Type]; !ok {
			return errors.Errorf("source %q: unknown type %q", s.Name, s.Type)
		}
	}
	for _, f := range c.Filters {
		if err := checkName("filter", f.Name); err != nil {
			return err
		}
		if _, ok := filterBuilders[f.Type]; !ok {
			return errors.Errorf("filter %q: unknown type %q", f.Name, f.Type)
		}
	}
	for _, s := range c.Sinks {
		if err := checkName("sink", s.Name); err != nil {
			return err
		}
		if _, ok := sinkBuilders[s.Type]; !ok {
			return errors.Errorf("sink %q: unknown type %q", s.Name, s.Type)
		}
	}
	return nil
}
