// Package boxstream implements the encrypted framing layer that runs atop a
// raw duplex transport once the handshake completes. Each direction is an
// independent channel seeded with its own session key and nonce.
//
// A message is sent as one or more segments of at most MaxSegmentSize bytes.
// Each segment is a sealed 34-byte header (2-byte big-endian body length plus
// the body's 16-byte authentication tag) followed by the body ciphertext.
// The 24-byte nonce is treated as a big-endian counter advancing by two per
// segment (header, then body). A header of 18 zero bytes is the goodbye
// marker: the graceful end of the stream.
package boxstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// MaxSegmentSize is the largest body carried by a single segment.
	// Longer sends are split; receivers never see a frame above this size.
	MaxSegmentSize = 4096

	// HeaderSize is the size of a sealed segment header on the wire.
	HeaderSize = 2 + secretbox.Overhead + secretbox.Overhead // length + body tag, sealed

	headerPlainSize = 2 + secretbox.Overhead // length + body tag
)

// Channel failure kinds. Any of these is fatal for the direction it occurs
// on; the box stream has no recovery protocol.
var (
	// ErrUnboxFailed indicates a header or body that could not be opened:
	// tampering, corruption, or a key/nonce mismatch.
	ErrUnboxFailed = errors.New("boxstream: message authentication failed")

	// ErrInvalidLength indicates a header carrying an out-of-range body length.
	ErrInvalidLength = errors.New("boxstream: invalid body length in header")

	// ErrClosed indicates a send after the goodbye marker was written.
	ErrClosed = errors.New("boxstream: stream already closed")
)

// increment treats the nonce as a 24-byte big-endian counter.
func increment(n *[24]byte) {
	for i := len(n) - 1; i >= 0; i-- {
		n[i]++
		if n[i] != 0 {
			return
		}
	}
}

// Writer seals outbound segments onto w. It owns its direction's key and
// nonce exclusively; it is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	key    [32]byte
	nonce  [24]byte
	closed bool
}

// NewWriter creates the outbound channel for one connection direction.
func NewWriter(w io.Writer, key [32]byte, nonce [24]byte) *Writer {
	return &Writer{w: w, key: key, nonce: nonce}
}

// Send seals msg and writes it, splitting into segments as needed.
// An empty msg produces a single empty segment.
func (bw *Writer) Send(msg []byte) error {
	if bw.closed {
		return ErrClosed
	}
	for {
		segment := msg
		if len(segment) > MaxSegmentSize {
			segment = msg[:MaxSegmentSize]
		}
		if err := bw.sendSegment(segment); err != nil {
			return err
		}
		msg = msg[len(segment):]
		if len(msg) == 0 {
			return nil
		}
	}
}

func (bw *Writer) sendSegment(body []byte) error {
	headerNonce := bw.nonce
	increment(&bw.nonce)
	bodyNonce := bw.nonce
	increment(&bw.nonce)

	// The body box's tag is carried in the header, so the wire layout is
	// sealed header || body ciphertext.
	boxed := secretbox.Seal(nil, body, &bodyNonce, &bw.key)
	tag := boxed[:secretbox.Overhead]
	cipherBody := boxed[secretbox.Overhead:]

	var headerPlain [headerPlainSize]byte
	binary.BigEndian.PutUint16(headerPlain[:2], uint16(len(body)))
	copy(headerPlain[2:], tag)

	out := secretbox.Seal(nil, headerPlain[:], &headerNonce, &bw.key)
	out = append(out, cipherBody...)
	if _, err := bw.w.Write(out); err != nil {
		return fmt.Errorf("boxstream: write segment: %w", err)
	}
	return nil
}

// Goodbye writes the goodbye marker, signalling a graceful end of this
// direction. The Writer accepts no further sends.
func (bw *Writer) Goodbye() error {
	if bw.closed {
		return ErrClosed
	}
	bw.closed = true

	var headerPlain [headerPlainSize]byte
	out := secretbox.Seal(nil, headerPlain[:], &bw.nonce, &bw.key)
	increment(&bw.nonce)
	if _, err := bw.w.Write(out); err != nil {
		return fmt.Errorf("boxstream: write goodbye: %w", err)
	}
	return nil
}

// Reader opens inbound segments from r. It owns its direction's key and
// nonce exclusively; it is not safe for concurrent use.
type Reader struct {
	r     io.Reader
	key   [32]byte
	nonce [24]byte
}

// NewReader creates the inbound channel for one connection direction.
func NewReader(r io.Reader, key [32]byte, nonce [24]byte) *Reader {
	return &Reader{r: r, key: key, nonce: nonce}
}

// Recv reads and opens the next segment. It returns io.EOF after the
// goodbye marker; any other error is fatal for the stream.
func (br *Reader) Recv() ([]byte, error) {
	var sealedHeader [HeaderSize]byte
	if _, err := io.ReadFull(br.r, sealedHeader[:]); err != nil {
		return nil, fmt.Errorf("boxstream: read header: %w", err)
	}

	headerNonce := br.nonce
	increment(&br.nonce)
	bodyNonce := br.nonce
	increment(&br.nonce)

	headerPlain, ok := secretbox.Open(nil, sealedHeader[:], &headerNonce, &br.key)
	if !ok {
		return nil, ErrUnboxFailed
	}

	goodbye := true
	for _, b := range headerPlain {
		if b != 0 {
			goodbye = false
			break
		}
	}
	if goodbye {
		return nil, io.EOF
	}

	bodyLen := binary.BigEndian.Uint16(headerPlain[:2])
	if bodyLen > MaxSegmentSize {
		return nil, ErrInvalidLength
	}

	boxed := make([]byte, secretbox.Overhead+int(bodyLen))
	copy(boxed, headerPlain[2:])
	if _, err := io.ReadFull(br.r, boxed[secretbox.Overhead:]); err != nil {
		return nil, fmt.Errorf("boxstream: read body: %w", err)
	}

	body, ok := secretbox.Open(nil, boxed, &bodyNonce, &br.key)
	if !ok {
		return nil, ErrUnboxFailed
	}
	return body, nil
}
