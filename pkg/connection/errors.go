package connection

import "errors"

// Sentinel errors for connection construction.
var (
	// ErrCannotConnect indicates the outbound dial timed out or was refused.
	ErrCannotConnect = errors.New("cannot connect to peer")

	// ErrHandshakeFailed indicates the peer could not be authenticated:
	// bad proof, mismatched network key, or a protocol violation.
	ErrHandshakeFailed = errors.New("handshake failed")
)

// Sentinel errors for a running connection. These surface as the completion
// result of the loop they occurred in, observable via Err after Done.
var (
	// ErrChannelRead indicates the inbound encrypted channel failed:
	// malformed frame, failed authentication, or a transport error.
	ErrChannelRead = errors.New("failed to read from encrypted channel")

	// ErrChannelWrite indicates the outbound encrypted channel failed.
	ErrChannelWrite = errors.New("failed to write to encrypted channel")

	// ErrSendQueueClosed indicates the outbound queue was closed while the
	// writer loop was draining it.
	ErrSendQueueClosed = errors.New("outbound message queue closed")

	// ErrEventSinkClosed indicates the shared event sink's consumer is gone.
	ErrEventSinkClosed = errors.New("event sink closed")

	// ErrConnectionClosed indicates a send on an already-closed connection.
	ErrConnectionClosed = errors.New("connection closed")
)
