package filters

import (
	"strings"

	"github.com/hopperd/hopper/internal/metric"
)

// CollectdScrub strips the collectd plugin-instance/type-instance
// noise collectd emits as literal dashes in metric names (e.g.
// "cpu-0.cpu-idle" -> "cpu_0.cpu_idle") and drops any configured tag keys
// entirely, since collectd tends to over-tag with low-cardinality-looking
// but actually-per-host values. Grounded on
// original_source/src/filter/collectd_scrub.rs.
type CollectdScrub struct {
	dropTags map[string]struct{}
}

// NewCollectdScrub returns a CollectdScrub that additionally drops every
// tag key named in dropTags.
func NewCollectdScrub(dropTags []string) *CollectdScrub {
	drop := make(map[string]struct{}, len(dropTags))
	for _, k := range dropTags {
		drop[k] = struct{}{}
	}
	return &CollectdScrub{dropTags: drop}
}

func (f *CollectdScrub) Process(ev metric.Event, out *[]metric.Event) {
	tel := ev.Telemetry()
	if tel == nil {
		*out = append(*out, ev)
		return
	}

	scrubbed := tel.WithName(strings.ReplaceAll(tel.Name(), "-", "_"))
	scrubbed = scrubbed.WithTags(f.scrubTags(scrubbed.Tags()))
	*out = append(*out, metric.NewTelemetryEvent(scrubbed))
}

func (f *CollectdScrub) scrubTags(tags metric.TagMap) metric.TagMap {
	var out metric.TagMap
	tags.Range(func(k, v string) {
		if _, drop := f.dropTags[k]; drop {
			return
		}
		out.Set(k, v)
	})
	return out
}

func (f *CollectdScrub) Shutdown() {}
