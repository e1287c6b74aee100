package scuttlechat

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/discovery"
)

// PeerSource yields discovered peers one at a time, blocking between
// announcements. *discovery.Service satisfies it.
type PeerSource interface {
	Recv() (discovery.PeerAddr, error)
}

// Events merges four independently paced producers into one consumer queue:
// console input, a fixed-rate tick, discovered peers, and relayed peer
// events. Delivery order equals arrival order at the shared queue;
// per-producer FIFO is preserved; cross-producer interleaving is arbitrary.
//
// Only the input producer self-terminates: it stops permanently after
// delivering the configured exit key, or at end of input. The other
// producers run until Close.
type Events struct {
	queue chan Event

	exitKey  rune
	tickRate time.Duration
	metrics  Metrics

	done      chan struct{}
	inputDone chan struct{}
	closeOnce sync.Once
}

// NewEvents starts the multiplexer's producers and returns the consumer
// handle. A nil input, peers, or relay skips that producer, which keeps the
// remaining sources testable in isolation.
func NewEvents(cfg *Config, input io.Reader, peers PeerSource, relay <-chan connection.PeerManagerEvent) *Events {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	e := &Events{
		queue:     make(chan Event, cfg.EventBufferSize),
		exitKey:   cfg.ExitKey,
		tickRate:  cfg.TickRate,
		metrics:   metrics,
		done:      make(chan struct{}),
		inputDone: make(chan struct{}),
	}

	if input != nil {
		go e.inputLoop(input)
	} else {
		close(e.inputDone)
	}
	go e.tickLoop()
	if peers != nil {
		go e.peerLoop(peers)
	}
	if relay != nil {
		go e.relayLoop(relay)
	}
	return e
}

// Next blocks until any producer sends and returns the next event. After
// Close, it drains what remains in the queue and then returns nil.
func (e *Events) Next() Event {
	select {
	case ev := <-e.queue:
		return ev
	case <-e.done:
		select {
		case ev := <-e.queue:
			return ev
		default:
			return nil
		}
	}
}

// InputDone is closed once the input producer has stopped, either on the
// exit key or at end of input.
func (e *Events) InputDone() <-chan struct{} {
	return e.inputDone
}

// Close stops the tick, discovery and relay producers. The input producer
// stops on its own exit path; a blocked console read cannot be interrupted.
// Close is idempotent.
func (e *Events) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// push delivers one event unless the multiplexer has been closed.
func (e *Events) push(ev Event) bool {
	select {
	case e.queue <- ev:
		e.metrics.EventEmitted(ev.Kind())
		return true
	case <-e.done:
		return false
	}
}

// inputLoop reads one key at a time. The exit key is delivered as a final
// event before the producer stops.
func (e *Events) inputLoop(input io.Reader) {
	defer close(e.inputDone)

	r := bufio.NewReader(input)
	for {
		key, _, err := r.ReadRune()
		if err != nil {
			return
		}
		if !e.push(InputEvent{Key: key}) {
			return
		}
		if key == e.exitKey {
			return
		}
	}
}

func (e *Events) tickLoop() {
	ticker := time.NewTicker(e.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !e.push(TickEvent{}) {
				return
			}
		case <-e.done:
			return
		}
	}
}

func (e *Events) peerLoop(peers PeerSource) {
	for {
		peer, err := peers.Recv()
		if err != nil {
			return
		}
		if !e.push(NewPeerEvent{Peer: peer}) {
			return
		}
	}
}

func (e *Events) relayLoop(relay <-chan connection.PeerManagerEvent) {
	for {
		select {
		case ev, ok := <-relay:
			if !ok {
				return
			}
			if !e.push(PeerEvent{Event: ev}) {
				return
			}
		case <-e.done:
			return
		}
	}
}
