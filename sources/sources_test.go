package sources

import (
	"sync"

	"github.com/hopperd/hopper/internal/metric"
)

// recordingSender is a Sender fake collecting every Event sent to it.
type recordingSender struct {
	mu     sync.Mutex
	events []metric.Event
}

func (s *recordingSender) Send(ev metric.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSender) snapshot() []metric.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]metric.Event, len(s.events))
	copy(out, s.events)
	return out
}
