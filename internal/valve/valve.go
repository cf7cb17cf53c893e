// Package valve implements the two-state advisory back-pressure signal
// (C7) a stage exposes to its upstream senders.
package valve

import "go.uber.org/atomic"

// State is the advisory back-pressure signal a stage reports.
type State int

const (
	// Open means upstream senders may send freely.
	Open State = iota
	// Closed means upstream senders should drop, shed, or delay — but
	// are not required to; closure is advisory only, per spec.md §9.
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}
	return "open"
}

// Valve is a lock-free holder for a stage's current State, read by
// upstream fan-out before each send and written by the stage itself
// whenever its own load-shedding policy changes.
type Valve struct {
	state atomic.Int32
}

// New returns a Valve starting Open.
func New() *Valve {
	return &Valve{}
}

// State returns the current advisory state.
func (v *Valve) State() State {
	return State(v.state.Load())
}

// Set updates the advisory state.
func (v *Valve) Set(s State) {
	v.state.Store(int32(s))
}

// IsOpen is a convenience check equivalent to State() == Open.
func (v *Valve) IsOpen() bool {
	return v.State() == Open
}
