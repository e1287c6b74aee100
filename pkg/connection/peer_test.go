package connection

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okwme/scuttle-chat/pkg/boxstream"
	"github.com/okwme/scuttle-chat/pkg/discovery"
	"github.com/okwme/scuttle-chat/pkg/secrethandshake"
)

// fakeAuth skips the cryptographic handshake and hands back fixed session
// keys, keeping the socket and goroutine plumbing under test on its own.
type fakeAuth struct {
	peer discovery.PeerAddr
	keys *secrethandshake.SessionKeys
	err  error
}

func (a *fakeAuth) Authenticate(conn net.Conn) (discovery.PeerAddr, *secrethandshake.SessionKeys, error) {
	if a.err != nil {
		return discovery.PeerAddr{}, nil, a.err
	}
	return a.peer, a.keys, nil
}

// testKeys returns a matched pair: side A's write direction is side B's read
// direction and vice versa.
func testKeys() (a, b *secrethandshake.SessionKeys) {
	var k1, k2 [32]byte
	var n1, n2 [24]byte
	for i := range k1 {
		k1[i] = byte(i)
		k2[i] = byte(i + 100)
	}
	for i := range n1 {
		n1[i] = byte(i * 2)
		n2[i] = byte(i*2 + 1)
	}
	a = &secrethandshake.SessionKeys{WriteKey: k1, WriteNonce: n1, ReadKey: k2, ReadNonce: n2}
	b = &secrethandshake.SessionKeys{WriteKey: k2, WriteNonce: n2, ReadKey: k1, ReadNonce: n1}
	return a, b
}

// collectSink records events and forwards them on Notify.
type collectSink struct {
	mu     sync.Mutex
	closed bool
	Notify chan PeerManagerEvent
}

func newCollectSink() *collectSink {
	return &collectSink{Notify: make(chan PeerManagerEvent, 64)}
}

func (s *collectSink) Emit(ev PeerManagerEvent) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("sink closed")
	}
	s.Notify <- ev
	return nil
}

func (s *collectSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func waitEvent(t *testing.T, ch chan PeerManagerEvent) PeerManagerEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return PeerManagerEvent{}
	}
}

func TestHandshakeFailureClosesConn(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	_, err := FromHandshake(newCollectSink(), local, &fakeAuth{err: errors.New("bad proof")})
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if _, werr := local.Write([]byte("x")); werr == nil {
		t.Error("conn still open after failed handshake")
	}
}

func TestReaderForwardsMessagesInOrder(t *testing.T) {
	local, remote := net.Pipe()
	keysA, keysB := testKeys()
	sink := newCollectSink()

	pc, err := FromHandshake(sink, local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}
	defer pc.Close()

	// Drive the remote side with a raw outbound channel.
	bw := boxstream.NewWriter(remote, keysB.WriteKey, keysB.WriteNonce)
	go func() {
		for i := 0; i < 10; i++ {
			_ = bw.Send([]byte(fmt.Sprintf("msg-%d", i)))
		}
	}()

	for i := 0; i < 10; i++ {
		ev := waitEvent(t, sink.Notify)
		if ev.Event.Kind != MessageReceived {
			t.Fatalf("event %d: kind %v", i, ev.Event.Kind)
		}
		if want := fmt.Sprintf("msg-%d", i); ev.Event.Text != want {
			t.Fatalf("event %d: got %q, want %q", i, ev.Event.Text, want)
		}
	}
}

func TestGoodbyeEmitsExactlyOneTerminalEvent(t *testing.T) {
	local, remote := net.Pipe()
	keysA, keysB := testKeys()
	sink := newCollectSink()

	pc, err := FromHandshake(sink, local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}
	defer pc.Close()

	bw := boxstream.NewWriter(remote, keysB.WriteKey, keysB.WriteNonce)
	go func() {
		_ = bw.Send([]byte("last words"))
		_ = bw.Goodbye()
	}()

	if ev := waitEvent(t, sink.Notify); ev.Event.Text != "last words" {
		t.Fatalf("got %q, want %q", ev.Event.Text, "last words")
	}

	ev := waitEvent(t, sink.Notify)
	if ev.Event.Kind != MessageReceived || ev.Event.Text != "Goodbye!" {
		t.Fatalf("terminal event: kind %v text %q", ev.Event.Kind, ev.Event.Text)
	}

	closed := waitEvent(t, sink.Notify)
	if closed.Event.Kind != ConnectionClosed || closed.Event.Err != nil {
		t.Fatalf("expected clean ConnectionClosed, got kind %v err %v", closed.Event.Kind, closed.Event.Err)
	}

	select {
	case extra := <-sink.Notify:
		t.Fatalf("reader emitted after goodbye: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNonUTF8PayloadRenderedAsRawBytes(t *testing.T) {
	local, remote := net.Pipe()
	keysA, keysB := testKeys()
	sink := newCollectSink()

	pc, err := FromHandshake(sink, local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}
	defer pc.Close()

	bw := boxstream.NewWriter(remote, keysB.WriteKey, keysB.WriteNonce)
	go func() {
		_ = bw.Send([]byte{0xff, 0xfe, 0x01})
	}()

	ev := waitEvent(t, sink.Notify)
	if ev.Event.Kind != MessageReceived {
		t.Fatalf("kind %v", ev.Event.Kind)
	}
	if ev.Event.Text == "" {
		t.Fatal("non-UTF-8 payload produced an empty rendering")
	}
	if !strings.HasPrefix(ev.Event.Text, "Raw bytes: ") {
		t.Fatalf("unexpected rendering %q", ev.Event.Text)
	}
}

func TestWriterPreservesSendOrder(t *testing.T) {
	local, remote := net.Pipe()
	keysA, keysB := testKeys()

	pc, err := FromHandshake(newCollectSink(), local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}
	defer pc.Close()

	const n = 20
	for i := 0; i < n; i++ {
		if err := pc.Send(fmt.Sprintf("out-%d", i)); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	br := boxstream.NewReader(remote, keysB.ReadKey, keysB.ReadNonce)
	for i := 0; i < n; i++ {
		body, err := br.Recv()
		if err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if want := fmt.Sprintf("out-%d", i); string(body) != want {
			t.Fatalf("message %d: got %q, want %q", i, body, want)
		}
	}
}

func TestChannelFailureSurfacesAsClosedEvent(t *testing.T) {
	local, remote := net.Pipe()
	keysA, _ := testKeys()
	sink := newCollectSink()

	pc, err := FromHandshake(sink, local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}

	// Abrupt transport failure, no goodbye.
	remote.Close()

	ev := waitEvent(t, sink.Notify)
	if ev.Event.Kind != ConnectionClosed {
		t.Fatalf("kind %v", ev.Event.Kind)
	}
	if !errors.Is(ev.Event.Err, ErrChannelRead) {
		t.Fatalf("expected ErrChannelRead in event, got %v", ev.Event.Err)
	}

	pc.Close()
	select {
	case <-pc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loops did not finish")
	}
	if !errors.Is(pc.Err(), ErrChannelRead) {
		t.Fatalf("Err: %v", pc.Err())
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	keysA, _ := testKeys()

	pc, err := FromHandshake(newCollectSink(), local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}

	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pc.Send("late"); !errors.Is(err, ErrSendQueueClosed) {
		t.Fatalf("expected ErrSendQueueClosed, got %v", err)
	}

	select {
	case <-pc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the loops")
	}
}

func TestClosedSinkStopsReader(t *testing.T) {
	local, remote := net.Pipe()
	keysA, keysB := testKeys()
	sink := newCollectSink()
	sink.Close()

	pc, err := FromHandshake(sink, local, &fakeAuth{keys: keysA})
	if err != nil {
		t.Fatalf("FromHandshake: %v", err)
	}

	bw := boxstream.NewWriter(remote, keysB.WriteKey, keysB.WriteNonce)
	go func() {
		_ = bw.Send([]byte("unheard"))
	}()

	pc.Close()
	select {
	case <-pc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loops did not finish")
	}
	// The reader exits with either the sink failure or the closed conn,
	// depending on which it hit first; both are fatal completion results.
	if pc.Err() == nil {
		t.Fatal("expected a completion error")
	}
}
