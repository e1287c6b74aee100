package connection

import (
	"fmt"
	"io"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/okwme/scuttle-chat/internal/queue"
	"github.com/okwme/scuttle-chat/pkg/boxstream"
	"github.com/okwme/scuttle-chat/pkg/discovery"
	"github.com/okwme/scuttle-chat/pkg/secrethandshake"
)

// goodbyeText is the single terminal message event emitted when the remote
// side closes its direction gracefully.
const goodbyeText = "Goodbye!"

// Authenticator runs one role of the handshake over an established conn and
// yields the authenticated peer plus that connection's session keys.
// Substituting it keeps socket and goroutine plumbing testable without real
// cryptography.
type Authenticator interface {
	Authenticate(conn net.Conn) (discovery.PeerAddr, *secrethandshake.SessionKeys, error)
}

// PeerConnection owns a peer's live session. It is created only by a
// successful handshake, holds the transport exclusively for its lifetime, and
// runs two goroutines: one draining the outbound queue onto the encrypted
// channel, one forwarding decrypted inbound messages to the shared sink.
//
// All methods are safe for concurrent use.
type PeerConnection struct {
	peer discovery.PeerAddr
	conn net.Conn
	out  *queue.Queue

	readerErr error
	writerErr error

	readerDone chan struct{}
	writerDone chan struct{}
	done       chan struct{}

	closeOnce sync.Once
}

// FromHandshake authenticates conn with auth and, on success, starts the
// connection's loops. On failure the conn is closed and an error wrapping
// ErrHandshakeFailed is returned; the raw socket and key material never
// escape this boundary.
func FromHandshake(sink EventSink, conn net.Conn, auth Authenticator) (*PeerConnection, error) {
	peer, keys, err := auth.Authenticate(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	pc := &PeerConnection{
		peer:       peer,
		conn:       conn,
		out:        queue.New(),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	// One exclusively owned encrypted channel per direction. Go's net.Conn
	// supports one concurrent reader plus one concurrent writer, which is
	// the duplication the split directions need.
	writer := boxstream.NewWriter(conn, keys.WriteKey, keys.WriteNonce)
	reader := boxstream.NewReader(conn, keys.ReadKey, keys.ReadNonce)

	go pc.writerLoop(writer)
	go pc.readerLoop(reader, sink)
	go func() {
		<-pc.readerDone
		<-pc.writerDone
		_ = pc.conn.Close()
		close(pc.done)
	}()

	return pc, nil
}

// Peer returns the authenticated identity and address of the remote side.
func (pc *PeerConnection) Peer() discovery.PeerAddr {
	return pc.peer
}

// Send enqueues one outbound message. It never blocks: the outbound queue is
// unbounded, so a slow peer backs up memory rather than the caller. Messages
// reach the peer in Send order.
func (pc *PeerConnection) Send(text string) error {
	if !pc.out.Push(text) {
		return ErrSendQueueClosed
	}
	return nil
}

// Close tears the connection down promptly: it closes the outbound queue,
// stopping the writer loop, and closes the socket, unblocking a reader loop
// waiting on the peer. Close is idempotent and returns the socket close
// error, if any.
func (pc *PeerConnection) Close() error {
	var err error
	pc.closeOnce.Do(func() {
		pc.out.Close()
		err = pc.conn.Close()
	})
	return err
}

// Done is closed once both loops have finished.
func (pc *PeerConnection) Done() <-chan struct{} {
	return pc.done
}

// Err returns the completion result of the connection's loops: the reader
// error if any, otherwise the writer error. It is meaningful only after Done
// is closed; a graceful shutdown reports nil.
func (pc *PeerConnection) Err() error {
	select {
	case <-pc.done:
	default:
		return nil
	}
	if pc.readerErr != nil {
		return pc.readerErr
	}
	return pc.writerErr
}

// readerLoop pulls one decrypted message at a time from the inbound channel
// and forwards it to the shared sink, preserving arrival order.
//
// Message bodies that are valid UTF-8 are forwarded as text; anything else is
// forwarded as a debug rendering of the raw bytes, never discarded. A
// graceful goodbye yields exactly one terminal "Goodbye!" message event. Any
// channel failure is fatal: the loop records it as its completion result and
// additionally reports it to the sink as a ConnectionClosed event.
func (pc *PeerConnection) readerLoop(reader *boxstream.Reader, sink EventSink) {
	defer close(pc.readerDone)
	// The inbound direction ending, gracefully or not, winds down the whole
	// connection: closing the queue lets the writer flush what is already
	// enqueued and say goodbye.
	defer pc.out.Close()

	for {
		body, err := reader.Recv()
		if err == io.EOF {
			if emitErr := sink.Emit(PeerManagerEvent{
				Peer:  pc.peer,
				Event: PeerEvent{Kind: MessageReceived, Text: goodbyeText},
			}); emitErr != nil {
				pc.readerErr = fmt.Errorf("%w: %v", ErrEventSinkClosed, emitErr)
				return
			}
			_ = sink.Emit(PeerManagerEvent{
				Peer:  pc.peer,
				Event: PeerEvent{Kind: ConnectionClosed},
			})
			return
		}
		if err != nil {
			pc.readerErr = fmt.Errorf("%w: %v", ErrChannelRead, err)
			// Best effort: make the failure visible to the event consumer
			// rather than only to a Done watcher.
			_ = sink.Emit(PeerManagerEvent{
				Peer:  pc.peer,
				Event: PeerEvent{Kind: ConnectionClosed, Err: pc.readerErr},
			})
			return
		}

		text := string(body)
		if !utf8.ValidString(text) {
			text = fmt.Sprintf("Raw bytes: %v", body)
		}
		if emitErr := sink.Emit(PeerManagerEvent{
			Peer:  pc.peer,
			Event: PeerEvent{Kind: MessageReceived, Text: text},
		}); emitErr != nil {
			pc.readerErr = fmt.Errorf("%w: %v", ErrEventSinkClosed, emitErr)
			return
		}
	}
}

// writerLoop drains the outbound queue one message at a time onto the
// encrypted channel, preserving enqueue order. A write failure is fatal. A
// closed queue ends the loop cleanly after a best-effort goodbye (the socket
// may already be gone during prompt teardown).
func (pc *PeerConnection) writerLoop(writer *boxstream.Writer) {
	defer close(pc.writerDone)

	for {
		msg, ok := pc.out.Pop()
		if !ok {
			_ = writer.Goodbye()
			return
		}
		if err := writer.Send([]byte(msg)); err != nil {
			pc.writerErr = fmt.Errorf("%w: %v", ErrChannelWrite, err)
			return
		}
	}
}
