// Package selftelemetry implements the process-wide internal telemetry
// queue (C10): the daemon reports on itself (error counters, bad-packet
// counts, queue depths) by pushing Telemetry onto an ordinary mutex
// guarded deque, which a dedicated drain loop then feeds into the same
// hopper/buckets pipeline as externally-ingested samples.
package selftelemetry

import (
	"container/list"
	"sync"

	"github.com/hopperd/hopper/internal/metric"
)

// Queue is a single mutex-guarded deque of self-reported Telemetry,
// matching spec.md §5's "internal-telemetry queue is a single
// mutex-guarded deque".
type Queue struct {
	mu    sync.Mutex
	items *list.List
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{items: list.New()}
}

// Push enqueues t at the back of the deque.
func (q *Queue) Push(t *metric.Telemetry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items.PushBack(t)
}

// Pop removes and returns the oldest Telemetry, or ok=false if empty.
func (q *Queue) Pop() (*metric.Telemetry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	q.items.Remove(front)
	return front.Value.(*metric.Telemetry), true
}

// Len reports the number of queued Telemetry.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// DrainInto pops every queued Telemetry and hands it to sink, stopping
// when the queue is empty. Used by the timer/drain goroutine that feeds
// self-telemetry into the ordinary channel fabric.
func (q *Queue) DrainInto(sink func(*metric.Telemetry)) {
	for {
		t, ok := q.Pop()
		if !ok {
			return
		}
		sink(t)
	}
}

// Default is the process-wide self-telemetry queue. Sinks and sources
// report counters such as cernan.sinks.*.error.* and
// cernan.sources.*.bad_packet through it, per spec.md §7.
var Default = New()

// Counter is a convenience helper building a Sum-aggregated, persistent
// Telemetry named name with value 1 and pushing it onto Default — the
// shape most of the error/bad-packet counters named in spec.md §7 take.
func Counter(name string, tags metric.TagMap, timestamp int64) {
	tel, err := metric.NewBuilder(name).Tags(tags).Sum(1).Timestamp(timestamp).Persist(true).Build()
	if err != nil {
		return
	}
	Default.Push(tel)
}
