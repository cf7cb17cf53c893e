// Package filters holds the concrete runtime.Filter implementations
// wired into a hopperd topology.
package filters

import "github.com/hopperd/hopper/internal/metric"

// Identity forwards every event unchanged. Grounded on
// original_source/src/filter/id.rs, the simplest possible
// runtime.Filter implementation and a useful no-op topology node for
// testing and for splicing a Valve checkpoint into a route without
// otherwise altering it.
type Identity struct{}

// NewIdentity returns an Identity filter.
func NewIdentity() *Identity { return &Identity{} }

func (f *Identity) Process(ev metric.Event, out *[]metric.Event) {
	*out = append(*out, ev)
}

func (f *Identity) Shutdown() {}
