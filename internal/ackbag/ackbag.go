// Package ackbag implements the process-global ack bag (C4): a mutex
// guarded map from connection id to an ack counter, used to block a
// synchronous publisher until its event has been consumed downstream.
//
// Grounded on spec.md §4.5's prepare_wait/ack/wait_for/remove lifecycle;
// the exponential-backoff polling loop follows the same shape as the sink
// and filter runtime loops in internal/runtime (C8/C9), just applied to a
// single id instead of a channel.
package ackbag

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	minBackoff = 5 * time.Millisecond
	maxBackoff = 250 * time.Millisecond
)

// ErrNotPrepared is returned by WaitFor when called against an id that
// was never PrepareWait'ed (or has already been Remove'd). Ack on such an
// id is a no-op and returns nil.
var ErrNotPrepared = errors.New("ackbag: id was never prepared")

type props struct {
	acksReceived int
}

// Bag is a process-wide map from uuid to an ack counter.
type Bag struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*props
}

// New returns an empty Bag. Most callers should use the process-wide
// Default instance.
func New() *Bag {
	return &Bag{entries: make(map[uuid.UUID]*props)}
}

// PrepareWait registers id with a zeroed ack counter. Must be called
// before WaitFor or Ack.
func (b *Bag) PrepareWait(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[id] = &props{}
}

// Ack increments id's ack counter. Extra acks past the first are
// idempotent no-ops once the entry has been removed.
func (b *Bag) Ack(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.entries[id]
	if !ok {
		return nil
	}
	p.acksReceived++
	return nil
}

// WaitFor blocks the caller, polling with exponential backoff (5ms to a
// 250ms cap) until id's ack counter is greater than zero. Returns
// ErrNotPrepared if id was never PrepareWait'ed.
func (b *Bag) WaitFor(id uuid.UUID) error {
	backoff := minBackoff
	for {
		b.mu.Lock()
		p, ok := b.entries[id]
		if !ok {
			b.mu.Unlock()
			return ErrNotPrepared
		}
		if p.acksReceived > 0 {
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Remove drops id's entry.
func (b *Bag) Remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
}

// Len reports the number of ids currently awaiting an ack, for tests and
// self-telemetry.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Default is the process-wide ack bag used by the wire-protocol handlers.
var Default = New()
