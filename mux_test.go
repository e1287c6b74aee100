package scuttlechat

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/okwme/scuttle-chat/internal/testutil"
	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/discovery"
)

// quietConfig returns a config whose tick is too slow to interfere with the
// producer under test.
func quietConfig(t *testing.T) *Config {
	t.Helper()
	return NewConfig(testutil.Keypair(1), "unused.db", WithTickRate(time.Hour))
}

// nextWithin fails the test if no event arrives in time.
func nextWithin(t *testing.T, e *Events, d time.Duration) Event {
	t.Helper()
	got := make(chan Event, 1)
	go func() { got <- e.Next() }()
	select {
	case ev := <-got:
		return ev
	case <-time.After(d):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestInputEventsInOrder(t *testing.T) {
	e := NewEvents(quietConfig(t), strings.NewReader("abc"), nil, nil)
	defer e.Close()

	for _, want := range []rune{'a', 'b', 'c'} {
		ev := nextWithin(t, e, time.Second)
		in, ok := ev.(InputEvent)
		if !ok {
			t.Fatalf("got %T, want InputEvent", ev)
		}
		if in.Key != want {
			t.Errorf("Key = %q, want %q", in.Key, want)
		}
	}
}

func TestExitKeyIsFinalInputEvent(t *testing.T) {
	e := NewEvents(quietConfig(t), strings.NewReader("aqz"), nil, nil)
	defer e.Close()

	ev := nextWithin(t, e, time.Second)
	if in := ev.(InputEvent); in.Key != 'a' {
		t.Fatalf("Key = %q, want 'a'", in.Key)
	}

	// The exit key itself is delivered, then the producer stops: the 'z'
	// that follows never arrives.
	ev = nextWithin(t, e, time.Second)
	if in := ev.(InputEvent); in.Key != 'q' {
		t.Fatalf("Key = %q, want 'q'", in.Key)
	}

	select {
	case <-e.InputDone():
	case <-time.After(time.Second):
		t.Fatal("input producer did not stop after exit key")
	}

	select {
	case ev := <-e.queue:
		t.Fatalf("unexpected event after exit key: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTicksKeepComing(t *testing.T) {
	cfg := NewConfig(testutil.Keypair(1), "unused.db", WithTickRate(5*time.Millisecond))
	e := NewEvents(cfg, nil, nil, nil)
	defer e.Close()

	for i := 0; i < 3; i++ {
		ev := nextWithin(t, e, time.Second)
		if _, ok := ev.(TickEvent); !ok {
			t.Fatalf("got %T, want TickEvent", ev)
		}
	}
}

func TestPeerSourceEvents(t *testing.T) {
	peers := make(chan discovery.PeerAddr, 2)
	want := discovery.PeerAddr{PublicKey: testutil.Keypair(2).Public}
	peers <- want
	close(peers)

	e := NewEvents(quietConfig(t), nil, chanSource(peers), nil)
	defer e.Close()

	ev := nextWithin(t, e, time.Second)
	np, ok := ev.(NewPeerEvent)
	if !ok {
		t.Fatalf("got %T, want NewPeerEvent", ev)
	}
	if np.Peer.PublicKey != want.PublicKey {
		t.Errorf("Peer = %s, want %s", np.Peer.PublicKey, want.PublicKey)
	}
}

func TestRelayPreservesOrder(t *testing.T) {
	relay := make(chan connection.PeerManagerEvent, 3)
	for _, text := range []string{"one", "two", "three"} {
		relay <- connection.PeerManagerEvent{
			Event: connection.PeerEvent{Kind: connection.MessageReceived, Text: text},
		}
	}

	e := NewEvents(quietConfig(t), nil, nil, relay)
	defer e.Close()

	for _, want := range []string{"one", "two", "three"} {
		ev := nextWithin(t, e, time.Second)
		pe, ok := ev.(PeerEvent)
		if !ok {
			t.Fatalf("got %T, want PeerEvent", ev)
		}
		if pe.Event.Event.Text != want {
			t.Errorf("Text = %q, want %q", pe.Event.Event.Text, want)
		}
	}
}

func TestNextReturnsNilAfterClose(t *testing.T) {
	relay := make(chan connection.PeerManagerEvent, 1)
	relay <- connection.PeerManagerEvent{
		Event: connection.PeerEvent{Kind: connection.MessageReceived, Text: "pending"},
	}

	e := NewEvents(quietConfig(t), nil, nil, relay)

	// Let the relay producer move the pending event into the queue.
	ev := nextWithin(t, e, time.Second)
	pe := ev.(PeerEvent)
	if pe.Event.Event.Text != "pending" {
		t.Fatalf("Text = %q, want pending", pe.Event.Event.Text)
	}

	e.Close()
	e.Close() // idempotent

	if ev := nextWithin(t, e, time.Second); ev != nil {
		t.Fatalf("Next after Close = %#v, want nil", ev)
	}
}

func TestEventKinds(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{InputEvent{Key: 'a'}, "input"},
		{TickEvent{}, "tick"},
		{NewPeerEvent{}, "new_peer"},
		{PeerEvent{}, "peer_manager"},
	}
	for _, tt := range tests {
		if got := tt.ev.Kind(); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
	}
}

// chanSource adapts a channel of peers to the PeerSource interface.
type chanSource chan discovery.PeerAddr

func (c chanSource) Recv() (discovery.PeerAddr, error) {
	peer, ok := <-c
	if !ok {
		return discovery.PeerAddr{}, io.EOF
	}
	return peer, nil
}
