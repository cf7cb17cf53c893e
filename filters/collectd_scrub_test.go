package filters

import (
	"testing"

	"github.com/hopperd/hopper/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectdScrubRewritesDashesInName(t *testing.T) {
	var tags metric.TagMap
	tags.Set("host", "web-01")

	tel, err := metric.NewBuilder("cpu-0.cpu-idle").Tags(tags).Sum(99.5).Build()
	require.NoError(t, err)

	f := NewCollectdScrub(nil)
	var out []metric.Event
	f.Process(metric.NewTelemetryEvent(tel), &out)

	require.Len(t, out, 1)
	scrubbed := out[0].Telemetry()
	assert.Equal(t, "cpu_0.cpu_idle", scrubbed.Name())
	v, ok := scrubbed.Sum()
	require.True(t, ok)
	assert.Equal(t, 99.5, v)
}

func TestCollectdScrubDropsConfiguredTags(t *testing.T) {
	var tags metric.TagMap
	tags.Set("host", "web-01")
	tags.Set("plugin_instance", "noisy")

	tel, err := metric.NewBuilder("cpu-idle").Tags(tags).Sum(1).Build()
	require.NoError(t, err)

	f := NewCollectdScrub([]string{"plugin_instance"})
	var out []metric.Event
	f.Process(metric.NewTelemetryEvent(tel), &out)

	scrubbed := out[0].Telemetry()
	_, ok := scrubbed.Tags().Get("plugin_instance")
	assert.False(t, ok)
	host, ok := scrubbed.Tags().Get("host")
	require.True(t, ok)
	assert.Equal(t, "web-01", host)
}

func TestCollectdScrubPreservesHistogramSamples(t *testing.T) {
	bounds := []float64{1.0, 10.0, 100.0}
	tel, err := metric.NewBuilder("req-latency").Histogram(bounds, 0.5).Build()
	require.NoError(t, err)
	tel.Insert(5.0)
	tel.Insert(1000.0)

	f := NewCollectdScrub(nil)
	var out []metric.Event
	f.Process(metric.NewTelemetryEvent(tel), &out)

	scrubbed := out[0].Telemetry()
	_, counts, ok := scrubbed.HistogramCounts()
	require.True(t, ok)
	assert.Equal(t, []uint64{1, 1, 0, 1}, counts)
}

func TestCollectdScrubPassesThroughNonTelemetry(t *testing.T) {
	f := NewCollectdScrub(nil)
	var out []metric.Event
	f.Process(metric.ShutdownEvent, &out)

	require.Len(t, out, 1)
	assert.Equal(t, metric.EventShutdown, out[0].Kind())
}
