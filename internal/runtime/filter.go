package runtime

import (
	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/valve"
)

// Sender is the minimal interface the filter loop needs to fan output
// events downstream.
type Sender interface {
	Send(metric.Event) error
}

// Filter is the common contract every filter implementation satisfies:
// process one incoming event, appending zero or more output events to
// out. Process sees every event kind, including TimerFlush and Shutdown,
// so a filter that buffers (Delay, FlushBoundary) has a chance to drain
// before the control signal reaches downstream stages; a filter with
// nothing to drain can simply append the control event unchanged.
// Shutdown is called once Process has produced its final output, for
// releasing any resources the filter itself owns.
type Filter interface {
	Process(ev metric.Event, out *[]metric.Event)
	Shutdown()
}

// RunFilter runs the common filter consumer loop described by spec.md
// §4.3: poll recv with exponential backoff when empty, call
// filter.Process on every event, fan every produced event out to every
// forward (N-1 clones plus one move into the last), and terminate on
// Shutdown once filter.Process has produced its final output and
// filter.Shutdown has run.
func RunFilter(recv Receiver, filter Filter, forwards []Sender, downstreamValve *valve.Valve) error {
	attempts := 0

	for {
		if attempts > 0 {
			sleep(Backoff(attempts))
		}

		ev, ok, err := recv.Next()
		if err != nil {
			return err
		}
		if !ok {
			attempts++
			continue
		}
		attempts = 0

		switch ev.Kind() {
		case metric.EventShutdown:
			var out []metric.Event
			filter.Process(ev, &out)
			for _, produced := range out {
				fanOut(forwards, produced)
			}
			filter.Shutdown()
			return nil
		case metric.EventTimerFlush:
			var out []metric.Event
			filter.Process(ev, &out)
			for _, produced := range out {
				fanOut(forwards, produced)
			}
		default:
			if downstreamValve != nil && !downstreamValve.IsOpen() {
				continue
			}
			var out []metric.Event
			filter.Process(ev, &out)
			for _, produced := range out {
				fanOut(forwards, produced)
			}
		}
	}
}

// fanOut sends ev to every forward: N-1 clones plus one move into the
// last, per spec.md §4.3's util::send fan-out description. Event payloads
// are pointers, so "clone" here is a cheap copy of the Event struct
// itself, not its payload.
func fanOut(forwards []Sender, ev metric.Event) {
	for _, f := range forwards {
		_ = f.Send(ev)
	}
}
