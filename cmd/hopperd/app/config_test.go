package app

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlagsAndApplyDefaults(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlagsAndApplyDefaults("", fs)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.HTTPListenAddr)
	assert.NotEmpty(t, cfg.Channels.Directory)
	assert.Greater(t, cfg.Channels.MaxBytes, int64(0))
	assert.NotZero(t, cfg.Channels.TickInterval)
}

func TestValidateRejectsUnknownType(t *testing.T) {
	cfg := Config{
		Sources: []SourceConfig{{Name: "in", Type: "bogus"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := Config{
		Sources: []SourceConfig{{Name: "dup", Type: "statsd"}},
		Sinks:   []SinkConfig{{Name: "dup", Type: "null"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate stage name")
}

func TestValidateRejectsMissingName(t *testing.T) {
	cfg := Config{
		Sinks: []SinkConfig{{Type: "null"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := Config{
		Sources: []SourceConfig{{Name: "in", Type: "statsd", Forwards: []string{"scrub"}}},
		Filters: []FilterConfig{{Name: "scrub", Type: "id", Forwards: []string{"out"}}},
		Sinks:   []SinkConfig{{Name: "out", Type: "null"}},
	}
	assert.NoError(t, cfg.Validate())
}
