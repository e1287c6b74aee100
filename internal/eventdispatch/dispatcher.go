// Package eventdispatch provides the shared sink that fans peer events from
// every connection's reader loop into one channel for the control loop.
package eventdispatch

import (
	"errors"
	"sync"

	"github.com/okwme/scuttle-chat/pkg/connection"
)

// ErrClosed is returned by Emit once the dispatcher has been closed.
// Reader loops treat it as fatal: the consumer is gone.
var ErrClosed = errors.New("eventdispatch: dispatcher closed")

// Dispatcher fans PeerManagerEvents into a buffered channel. Emit blocks
// while the buffer is full, so inbound messages are never dropped, and fails
// with ErrClosed after Close, so producers learn the consumer went away
// instead of silently losing events.
//
// The events channel itself is never closed; consumers select on Done to
// observe shutdown. This keeps a concurrent Emit from racing a channel close.
type Dispatcher struct {
	events chan connection.PeerManagerEvent

	closeOnce sync.Once
	done      chan struct{}
}

// Ensure Dispatcher satisfies the producer-side interface.
var _ connection.EventSink = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(bufferSize int) *Dispatcher {
	return &Dispatcher{
		events: make(chan connection.PeerManagerEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Emit delivers one event, blocking while the buffer is full.
// It returns ErrClosed if the dispatcher was closed.
func (d *Dispatcher) Emit(event connection.PeerManagerEvent) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	select {
	case d.events <- event:
		return nil
	case <-d.done:
		return ErrClosed
	}
}

// Events returns the consumer side.
func (d *Dispatcher) Events() <-chan connection.PeerManagerEvent {
	return d.events
}

// Done is closed when the dispatcher shuts down.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Close shuts the dispatcher down. Safe to call multiple times.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

// IsClosed reports whether Close has been called.
func (d *Dispatcher) IsClosed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}
